package zran

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/benbart/zran/internal/flate"
)

// Decompress returns length uncompressed bytes starting at offset start,
// reading as little of the compressed source as possible.
//
// src needs only to serve reads at absolute offsets; a local file, an
// in-memory buffer, or an HTTP range source all qualify. The call locates
// the nearest checkpoint at or before start, opens a decode session seeded
// with the checkpoint window, resumes mid-byte when the checkpoint demands
// it, and discards output up to start.
//
// start must lie inside the indexed stream, otherwise ErrInvalidRange is
// returned. Reaching the stream's logical end early yields the shorter
// range actually produced, not an error. The decode session and any
// buffers are scoped to the call, so concurrent calls against the same
// Index and source are safe.
func Decompress(src io.ReaderAt, index *Index, start, length uint64) ([]byte, error) {
	if index == nil || len(index.Points) == 0 {
		return nil, fmt.Errorf("decompress: index has no checkpoints: %w", ErrIndexFormat)
	}
	if start >= index.Length {
		return nil, fmt.Errorf("decompress: start %d beyond stream length %d: %w", start, index.Length, ErrInvalidRange)
	}
	if length > index.Length-start {
		length = index.Length - start
	}
	if length == 0 {
		return nil, nil
	}

	point, ok := ClosestPoint(index.Points, start, false)
	if !ok {
		return nil, fmt.Errorf("decompress: no checkpoint before %d: %w", start, ErrIndexFormat)
	}
	if start < point.OutLoc {
		// The locator clamps to the first checkpoint; anything before it is
		// not decodable from this index.
		return nil, fmt.Errorf("decompress: start %d precedes first checkpoint %d: %w", start, point.OutLoc, ErrInvalidRange)
	}

	inLoc := int64(point.InLoc)
	br := bufio.NewReader(io.NewSectionReader(src, inLoc, math.MaxInt64-inLoc))

	session := flate.NewSession(br, point.Window)
	if point.Bits > 0 {
		// Mid-byte resume: the low point.Bits bits of the byte at InLoc
		// belong to the previous block; feed only the high bits.
		c, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", ErrTruncated)
		}
		session.Prime(8-point.Bits, c>>point.Bits)
	}

	if skip := int64(start - point.OutLoc); skip > 0 {
		if _, err := io.CopyN(io.Discard, session, skip); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("decompress: %w", classifyStreamError(err))
		}
	}

	out := make([]byte, length)
	n := 0
	for n < len(out) {
		m, err := session.Read(out[n:])
		n += m
		if err == io.EOF {
			// Logical end of stream before the full range: short read.
			return out[:n], nil
		}
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", classifyStreamError(err))
		}
	}
	return out, nil
}
