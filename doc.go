// Package zran provides random access into deflate-family compressed
// streams (raw deflate, zlib, gzip) without decompressing from the start.
//
// One forward pass over a compressed stream builds a sparse [Index] of
// checkpoints; each checkpoint records the compressed and uncompressed
// position of a deflate block boundary plus the trailing 32 KiB of output
// needed to seed back-references. The index round-trips through the compact
// DFLIDX binary format, so it can be built once and shipped alongside the
// compressed data.
//
// A later [Decompress] call locates the nearest checkpoint at or before the
// requested offset, opens a fresh decode session seeded with the checkpoint
// window, and returns only the requested uncompressed byte range. This is
// most useful when the compressed data sits behind expensive or
// range-limited access, such as an HTTP server or object store, and only a
// small window is needed.
//
// # Quick start
//
// Build an index and read a slice of the uncompressed stream:
//
//	f, err := os.Open("data.gz")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	index, err := zran.BuildIndex(f, zran.WithSpan(1<<20))
//	if err != nil {
//	    return err
//	}
//	part, err := zran.Decompress(f, index, 1<<30, 4096)
//
// For remote data, the [github.com/benbart/zran/http] subpackage provides a
// source backed by HTTP range requests.
//
// # Reduced indexes
//
// When only a slice of the compressed stream will be fetched, [ReducePoints]
// derives the smallest compressed byte window covering a set of requested
// uncompressed ranges, plus a rebased sub-index that treats the window as a
// standalone stream.
//
// An Index is immutable once built; concurrent Decompress calls against the
// same Index are safe because every call opens its own decode session.
package zran
