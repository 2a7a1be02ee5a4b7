package zran

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// indexMagic tags the DFLIDX binary format.
const indexMagic = "DFLIDX"

// headerSize is the fixed portion of a serialized index:
// magic (6), mode (1), length (8), point count (4).
const headerSize = 6 + 1 + 8 + 4

// pointHeaderSize is the fixed portion of a serialized point:
// outloc (8), inloc (8), bits (1), window length (4).
const pointHeaderSize = 8 + 8 + 1 + 4

// Index describes one compressed stream: the container kind it was built
// from, its total uncompressed length, and the ordered checkpoint sequence.
//
// An Index is immutable once built. Points are sorted strictly ascending in
// both OutLoc and InLoc; the first point is always OutLoc 0 at the first
// deflate byte after any container header.
type Index struct {
	Mode   Mode
	Length uint64
	Points []Point
}

// NewIndex assembles an Index from already-prepared checkpoints, typically
// the rebased output of [ReducePoints]. The points slice is retained.
func NewIndex(mode Mode, length uint64, points []Point) *Index {
	return &Index{Mode: mode, Length: length, Points: points}
}

// MarshalBinary serializes the index in the DFLIDX format:
//
//	offset 0  6 bytes   magic "DFLIDX"
//	offset 6  int8      mode (zlib wbits: -15 raw, 15 zlib, 31 gzip)
//	offset 7  uint64    total uncompressed length
//	offset 15 uint32    point count
//	then per point:
//	          uint64    outloc
//	          uint64    inloc
//	          uint8     bits
//	          uint32    window length
//	          bytes     window (raw, not further compressed)
//
// All integers are little-endian.
func (idx *Index) MarshalBinary() ([]byte, error) {
	size := headerSize
	for i := range idx.Points {
		if len(idx.Points[i].Window) > MaxWindow {
			return nil, fmt.Errorf("point %d: window exceeds %d bytes: %w", i, MaxWindow, ErrIndexFormat)
		}
		size += pointHeaderSize + len(idx.Points[i].Window)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteString(indexMagic)
	buf.WriteByte(byte(idx.Mode))
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], idx.Length)
	buf.Write(scratch[:8])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(idx.Points)))
	buf.Write(scratch[:4])

	for i := range idx.Points {
		p := &idx.Points[i]
		binary.LittleEndian.PutUint64(scratch[:], p.OutLoc)
		buf.Write(scratch[:8])
		binary.LittleEndian.PutUint64(scratch[:], p.InLoc)
		buf.Write(scratch[:8])
		buf.WriteByte(p.Bits)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(p.Window)))
		buf.Write(scratch[:4])
		buf.Write(p.Window)
	}
	return buf.Bytes(), nil
}

// ParseIndex decodes a DFLIDX buffer produced by [Index.MarshalBinary].
// It fails fast on bad magic, truncated data, or inconsistent counts; no
// partial index is ever returned.
func ParseIndex(data []byte) (*Index, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("parse: buffer too short: %w", ErrIndexFormat)
	}
	if string(data[:6]) != indexMagic {
		return nil, fmt.Errorf("parse: bad magic: %w", ErrIndexFormat)
	}
	mode := Mode(data[6])
	if !mode.valid() {
		return nil, fmt.Errorf("parse: unknown mode %d: %w", int8(mode), ErrIndexFormat)
	}
	length := binary.LittleEndian.Uint64(data[7:15])
	count := binary.LittleEndian.Uint32(data[15:19])

	// Each point occupies at least pointHeaderSize bytes, so the declared
	// count is bounded by the remaining buffer. Checking before allocating
	// keeps a forged count from demanding an enormous slice.
	if uint64(count)*pointHeaderSize > uint64(len(data)-headerSize) {
		return nil, fmt.Errorf("parse: point count %d exceeds buffer: %w", count, ErrIndexFormat)
	}

	points := make([]Point, 0, count)
	rest := data[headerSize:]
	for i := uint32(0); i < count; i++ {
		if len(rest) < pointHeaderSize {
			return nil, fmt.Errorf("parse point %d: buffer too short: %w", i, ErrIndexFormat)
		}
		p := Point{
			OutLoc: binary.LittleEndian.Uint64(rest[0:8]),
			InLoc:  binary.LittleEndian.Uint64(rest[8:16]),
			Bits:   rest[16],
		}
		winLen := binary.LittleEndian.Uint32(rest[17:21])
		rest = rest[pointHeaderSize:]
		if winLen > MaxWindow {
			return nil, fmt.Errorf("parse point %d: window length %d: %w", i, winLen, ErrIndexFormat)
		}
		if uint32(len(rest)) < winLen {
			return nil, fmt.Errorf("parse point %d: truncated window: %w", i, ErrIndexFormat)
		}
		if p.Bits > 7 {
			return nil, fmt.Errorf("parse point %d: bit count %d: %w", i, p.Bits, ErrIndexFormat)
		}
		if winLen > 0 {
			// Copy so the point owns its window independently of data.
			p.Window = append([]byte(nil), rest[:winLen]...)
		}
		rest = rest[winLen:]

		if n := len(points); n > 0 {
			prev := &points[n-1]
			if p.OutLoc <= prev.OutLoc || p.InLoc <= prev.InLoc {
				return nil, fmt.Errorf("parse point %d: offsets not increasing: %w", i, ErrIndexFormat)
			}
		} else if p.OutLoc != 0 {
			// Every producer anchors the sequence at the start of the
			// uncompressed stream, full builds and rebased slices alike.
			return nil, fmt.Errorf("parse point 0: outloc %d, want 0: %w", p.OutLoc, ErrIndexFormat)
		}
		points = append(points, p)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("parse: %d trailing bytes: %w", len(rest), ErrIndexFormat)
	}

	return &Index{Mode: mode, Length: length, Points: points}, nil
}

// WriteFile serializes the index to path, replacing any existing file.
func (idx *Index) WriteFile(path string) (err error) {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

// ReadIndexFile loads and parses a DFLIDX file written by WriteFile.
func ReadIndexFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseIndex(data)
}
