package zran

import "errors"

var (
	// ErrCorrupt is returned when the compressed input contains invalid
	// deflate data, a malformed container header, or a checksum mismatch.
	ErrCorrupt = errors.New("zran: compressed data error in input file")

	// ErrTruncated is returned when the compressed input ends before the
	// stream's logical end.
	ErrTruncated = errors.New("zran: input file ended prematurely")

	// ErrIndexFormat is returned when a persisted index cannot be parsed.
	ErrIndexFormat = errors.New("zran: invalid index file")

	// ErrInvalidRange is returned when a requested offset lies outside the
	// uncompressed stream described by the index.
	ErrInvalidRange = errors.New("zran: requested range is outside the indexed stream")
)
