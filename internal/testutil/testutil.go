// Package testutil provides fixtures shared by the zran tests:
// deterministic payloads, compressed-stream builders for every container
// kind, and an in-memory byte source.
package testutil

import (
	"bytes"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Payload returns n deterministic pseudo-random bytes. The same n always
// yields the same bytes, so compressed fixtures are stable across runs.
func Payload(tb testing.TB, n int) []byte {
	tb.Helper()
	var seed [32]byte
	copy(seed[:], "zran test payload seed")
	src := rand.NewChaCha8(seed)
	out := make([]byte, n)
	if _, err := src.Read(out); err != nil {
		tb.Fatalf("payload: %v", err)
	}
	return out
}

// CompressGzip wraps data in a gzip container.
func CompressGzip(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	compressTo(tb, w, w.Close, data)
	return buf.Bytes()
}

// CompressZlib wraps data in a zlib container.
func CompressZlib(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	compressTo(tb, w, w.Close, data)
	return buf.Bytes()
}

// CompressFlate produces a raw deflate stream with no container.
func CompressFlate(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		tb.Fatalf("flate writer: %v", err)
	}
	compressTo(tb, w, w.Close, data)
	return buf.Bytes()
}

func compressTo(tb testing.TB, w io.Writer, close func() error, data []byte) {
	tb.Helper()
	if _, err := w.Write(data); err != nil {
		tb.Fatalf("compress: %v", err)
	}
	if err := close(); err != nil {
		tb.Fatalf("close compressor: %v", err)
	}
}

// ByteSource is an in-memory random-access source.
type ByteSource struct {
	data []byte
}

// NewByteSource returns a source backed by the provided data.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *ByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if off+int64(n) >= int64(len(s.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (s *ByteSource) Size() int64 {
	return int64(len(s.data))
}
