package zran

import (
	"bytes"
	"fmt"
)

// Range is a half-open byte interval [Lo, Hi).
type Range struct {
	Lo uint64
	Hi uint64
}

// Len returns the number of bytes the range covers.
func (r Range) Len() uint64 {
	return r.Hi - r.Lo
}

// ReducePoints computes the smallest compressed byte window able to serve
// every requested uncompressed range [starts[i], stops[i]) independently,
// along with a rebased checkpoint sequence for that window.
//
// inRange is the compressed window relative to the original stream;
// outRange is the uncompressed interval the window can produce. When no
// checkpoint lies strictly beyond the largest stop, the window runs to the
// end of the stream (compressedSize, uncompressedSize). The reduced points
// are independent rebased copies: InLoc shifted by inRange.Lo, OutLoc by
// outRange.Lo, so they describe a compressed slice that starts at byte 0.
//
// Callers extract the compressed bytes [inRange.Lo:inRange.Hi], combine the
// points with NewIndex(mode, outRange.Len(), reduced), and translate later
// absolute offsets by subtracting outRange.Lo.
func ReducePoints(points []Point, compressedSize, uncompressedSize uint64, starts, stops []uint64) (inRange, outRange Range, reduced []Point, err error) {
	if len(points) == 0 {
		return Range{}, Range{}, nil, fmt.Errorf("reduce: no checkpoints: %w", ErrIndexFormat)
	}
	if len(starts) == 0 || len(stops) == 0 {
		return Range{}, Range{}, nil, fmt.Errorf("reduce: no ranges requested: %w", ErrInvalidRange)
	}

	minStart := starts[0]
	for _, s := range starts[1:] {
		if s < minStart {
			minStart = s
		}
	}
	maxStop := stops[0]
	for _, s := range stops[1:] {
		if s > maxStop {
			maxStop = s
		}
	}

	lo, _ := ClosestPoint(points, minStart, false)
	inRange = Range{Lo: lo.InLoc, Hi: compressedSize}
	outRange = Range{Lo: lo.OutLoc, Hi: uncompressedSize}
	if hi, ok := ClosestPoint(points, maxStop, true); ok {
		inRange.Hi = hi.InLoc
		outRange.Hi = hi.OutLoc
	}

	for _, p := range points {
		if p.OutLoc < outRange.Lo || p.OutLoc > outRange.Hi {
			continue
		}
		reduced = append(reduced, Point{
			OutLoc: p.OutLoc - outRange.Lo,
			InLoc:  p.InLoc - inRange.Lo,
			Bits:   p.Bits,
			Window: bytes.Clone(p.Window),
		})
	}
	return inRange, outRange, reduced, nil
}
