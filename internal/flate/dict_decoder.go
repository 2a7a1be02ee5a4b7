// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Forked from Go stdlib compress/flate/dict_decoder.go.
// Changes: track total bytes written across wraps and expose an owned copy
// of the trailing history for checkpoint windows.

package flate

// WindowSize is the deflate history size: back-references reach at most
// 32 KiB into the past.
const WindowSize = 32768

// dictDecoder implements the LZ77 sliding dictionary used during
// decompression.
type dictDecoder struct {
	hist []byte // sliding window history

	// Invariant: 0 <= rdPos <= wrPos <= len(hist)
	wrPos int  // current output position in buffer
	rdPos int  // have emitted hist[:rdPos] already
	full  bool // has a full window length been written yet?

	totalWritten int64 // total uncompressed bytes written, across all wraps
}

// init seeds the dictionary with an optional preset history. Only the last
// len(hist) bytes of dict are retained.
func (dd *dictDecoder) init(size int, dict []byte) {
	*dd = dictDecoder{hist: dd.hist}

	if cap(dd.hist) < size {
		dd.hist = make([]byte, size)
	}
	dd.hist = dd.hist[:size]

	if len(dict) > len(dd.hist) {
		dict = dict[len(dict)-len(dd.hist):]
	}
	dd.wrPos = copy(dd.hist, dict)
	if dd.wrPos == len(dd.hist) {
		dd.wrPos = 0
		dd.full = true
	}
	dd.rdPos = dd.wrPos
}

func (dd *dictDecoder) histSize() int {
	if dd.full {
		return len(dd.hist)
	}
	return dd.wrPos
}

func (dd *dictDecoder) availRead() int {
	return dd.wrPos - dd.rdPos
}

func (dd *dictDecoder) availWrite() int {
	return len(dd.hist) - dd.wrPos
}

func (dd *dictDecoder) writeSlice() []byte {
	return dd.hist[dd.wrPos:]
}

func (dd *dictDecoder) writeMark(cnt int) {
	dd.wrPos += cnt
	dd.totalWritten += int64(cnt)
}

func (dd *dictDecoder) writeByte(c byte) {
	dd.hist[dd.wrPos] = c
	dd.wrPos++
	dd.totalWritten++
}

func (dd *dictDecoder) writeCopy(dist, length int) int {
	dstBase := dd.wrPos
	dstPos := dstBase
	srcPos := dstPos - dist
	endPos := dstPos + length
	if endPos > len(dd.hist) {
		endPos = len(dd.hist)
	}

	if srcPos < 0 {
		srcPos += len(dd.hist)
		dstPos += copy(dd.hist[dstPos:endPos], dd.hist[srcPos:])
		srcPos = 0
	}

	for dstPos < endPos {
		dstPos += copy(dd.hist[dstPos:endPos], dd.hist[srcPos:dstPos])
	}

	dd.wrPos = dstPos
	written := dstPos - dstBase
	dd.totalWritten += int64(written)
	return written
}

func (dd *dictDecoder) tryWriteCopy(dist, length int) int {
	dstPos := dd.wrPos
	endPos := dstPos + length
	if dstPos < dist || endPos > len(dd.hist) {
		return 0
	}
	dstBase := dstPos
	srcPos := dstPos - dist

	for dstPos < endPos {
		dstPos += copy(dd.hist[dstPos:endPos], dd.hist[srcPos:dstPos])
	}

	dd.wrPos = dstPos
	written := dstPos - dstBase
	dd.totalWritten += int64(written)
	return written
}

func (dd *dictDecoder) readFlush() []byte {
	toRead := dd.hist[dd.rdPos:dd.wrPos]
	dd.rdPos = dd.wrPos
	if dd.wrPos == len(dd.hist) {
		dd.wrPos, dd.rdPos = 0, 0
		dd.full = true
	}
	return toRead
}

// historyCopy returns an owned copy of the trailing decompressed history in
// decompression order. Until a full window has been produced the copy is
// exactly the bytes written so far; afterwards it is the last WindowSize
// bytes, unwrapping the circular buffer.
func (dd *dictDecoder) historyCopy() []byte {
	if !dd.full {
		if dd.wrPos == 0 {
			return nil
		}
		return append([]byte(nil), dd.hist[:dd.wrPos]...)
	}
	out := make([]byte, len(dd.hist))
	n := copy(out, dd.hist[dd.wrPos:])
	copy(out[n:], dd.hist[:dd.wrPos])
	return out
}
