package zran

import "sort"

// MaxWindow is the deflate history size: back-references reach at most
// 32 KiB into the past, so a checkpoint never needs more trailing output
// than this to resume.
const MaxWindow = 32768

// Point is a checkpoint from which decoding can resume independently.
//
// OutLoc and InLoc are the matching offsets into the uncompressed and
// compressed streams. Bits is the number of low bits of the byte at InLoc
// that were already consumed by the preceding block; resuming feeds the
// remaining high bits first. Window holds the (up to 32 KiB of)
// uncompressed bytes immediately preceding OutLoc, used to seed the decode
// session's back-reference history. Every Point owns its Window; points
// never share buffers.
type Point struct {
	OutLoc uint64
	InLoc  uint64
	Bits   uint8
	Window []byte
}

// ClosestPoint returns the checkpoint nearest target within points, which
// must be sorted ascending by OutLoc.
//
// With greaterThan false it returns the point with the greatest OutLoc at
// or before target, clamped to the first point when target precedes every
// checkpoint. With greaterThan true it returns the point with the smallest
// OutLoc strictly greater than target; ok is false when no such point
// exists. ok is also false for an empty slice.
func ClosestPoint(points []Point, target uint64, greaterThan bool) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	i := sort.Search(len(points), func(i int) bool {
		return points[i].OutLoc > target
	})
	if greaterThan {
		if i == len(points) {
			return Point{}, false
		}
		return points[i], true
	}
	if i == 0 {
		return points[0], true
	}
	return points[i-1], true
}
