package zran

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"io"

	"github.com/benbart/zran/internal/flate"
)

// DefaultSpan is the default target interval, in uncompressed bytes,
// between consecutive checkpoints.
const DefaultSpan = 1 << 20

type buildConfig struct {
	span    int64
	mode    Mode
	modeSet bool
}

// BuildOption configures index construction.
type BuildOption func(*buildConfig)

// WithSpan sets the target uncompressed-byte interval between checkpoints.
// The span is a hint: checkpoints land on the first deflate block boundary
// at or past it. Values below 1 fall back to DefaultSpan.
func WithSpan(n int64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.span = n
	}
}

// WithMode forces the container kind instead of sniffing the stream header,
// for raw deflate data that happens to look like a zlib or gzip header.
func WithMode(m Mode) BuildOption {
	return func(cfg *buildConfig) {
		cfg.mode = m
		cfg.modeSet = true
	}
}

// BuildIndex walks the compressed stream in r once and records a checkpoint
// at the first deflate block boundary after every span of uncompressed
// output, each carrying the trailing window needed to resume decoding
// there. The container kind is sniffed from the header unless forced with
// WithMode; gzip and zlib trailer checksums are verified at end of stream.
//
// The build is all-or-nothing: corrupt input fails with ErrCorrupt,
// input that ends before the stream's logical end fails with ErrTruncated,
// and no partial index is returned in either case.
func BuildIndex(r io.Reader, opts ...BuildOption) (*Index, error) {
	cfg := buildConfig{span: DefaultSpan}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.span < 1 {
		cfg.span = DefaultSpan
	}
	if cfg.modeSet && !cfg.mode.valid() {
		return nil, fmt.Errorf("build: container mode %d: %w", int8(cfg.mode), ErrCorrupt)
	}

	br := bufio.NewReader(r)
	mode := cfg.mode
	if !cfg.modeSet {
		var err error
		if mode, err = sniffMode(br); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}
	headerLen, err := readHeader(br, mode)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	var digest hash.Hash32
	switch mode {
	case ModeGzip:
		digest = crc32.NewIEEE()
	case ModeZlib:
		digest = adler32.New()
	}

	// The first checkpoint is the stream start: no history, whole bytes,
	// positioned just past the container header.
	points := []Point{{OutLoc: 0, InLoc: uint64(headerLen), Bits: 0}}
	lastOut := int64(0)

	session := flate.NewSession(br, nil)
	session.OnBlockEnd = func(final bool) {
		if final {
			return
		}
		out := session.OutputTotal()
		if out-lastOut < cfg.span {
			return
		}
		inOff, bits := session.Checkpoint()
		points = append(points, Point{
			OutLoc: uint64(out),
			InLoc:  uint64(headerLen + inOff),
			Bits:   bits,
			Window: session.HistoryCopy(),
		})
		lastOut = out
	}

	var total int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := session.Read(buf)
		total += int64(n)
		if digest != nil && n > 0 {
			digest.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("build: %w", classifyStreamError(rerr))
		}
	}

	if digest != nil {
		if err := verifyTrailer(br, mode, digest, uint64(total)); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}

	return &Index{Mode: mode, Length: uint64(total), Points: points}, nil
}

// classifyStreamError maps decode session failures onto the zran error
// taxonomy: invalid bit patterns are corruption, exhausted input before the
// logical end is truncation, anything else (reader I/O failures) passes
// through untouched.
func classifyStreamError(err error) error {
	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%v: %w", err, ErrCorrupt)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
