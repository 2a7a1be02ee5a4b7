package zran

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
)

// Mode identifies the container wrapped around the raw deflate data.
// Values follow the zlib window-bits convention so indexes interoperate
// with tooling that records wbits directly.
type Mode int8

const (
	ModeRaw  Mode = -15
	ModeZlib Mode = 15
	ModeGzip Mode = 31
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeZlib:
		return "zlib"
	case ModeGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

func (m Mode) valid() bool {
	return m == ModeRaw || m == ModeZlib || m == ModeGzip
}

const (
	gzipID1 = 0x1f
	gzipID2 = 0x8b

	// deflate compression method, shared by the gzip CM field and the
	// zlib CMF low nibble.
	methodDeflate = 8
)

// sniffMode inspects the first bytes of the stream without consuming them.
// Anything that is neither a gzip nor a zlib header is treated as raw
// deflate; raw garbage then surfaces as ErrCorrupt from the decoder.
func sniffMode(br *bufio.Reader) (Mode, error) {
	head, err := br.Peek(2)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("sniff container: %w", ErrTruncated)
		}
		return 0, err
	}
	if head[0] == gzipID1 && head[1] == gzipID2 {
		return ModeGzip, nil
	}
	if head[0]&0x0f == methodDeflate && head[0]>>4 <= 7 &&
		(uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
		return ModeZlib, nil
	}
	return ModeRaw, nil
}

// readHeader consumes and validates the container header, returning the
// byte offset of the first deflate byte. Raw streams have no header.
func readHeader(br *bufio.Reader, mode Mode) (int64, error) {
	switch mode {
	case ModeRaw:
		return 0, nil
	case ModeZlib:
		return readZlibHeader(br)
	case ModeGzip:
		return readGzipHeader(br)
	default:
		return 0, fmt.Errorf("container mode %d: %w", int8(mode), ErrCorrupt)
	}
}

// headerReadErr maps exhausted input onto the truncation class and passes
// real I/O failures through.
func headerReadErr(section string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%s: %w", section, ErrTruncated)
	}
	return fmt.Errorf("%s: %w", section, err)
}

func readZlibHeader(br *bufio.Reader) (int64, error) {
	var head [2]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return 0, headerReadErr("zlib header", err)
	}
	if head[0]&0x0f != methodDeflate || head[0]>>4 > 7 ||
		(uint16(head[0])<<8|uint16(head[1]))%31 != 0 {
		return 0, fmt.Errorf("zlib header: %w", ErrCorrupt)
	}
	if head[1]&0x20 != 0 {
		// FDICT: the preset dictionary is not part of the stream, so the
		// index could never resume from it.
		return 0, fmt.Errorf("zlib header: preset dictionary: %w", ErrCorrupt)
	}
	return 2, nil
}

// readGzipHeader parses an RFC 1952 header including the optional EXTRA,
// NAME, COMMENT and HCRC fields, so the returned offset always lands on
// the first deflate byte.
func readGzipHeader(br *bufio.Reader) (int64, error) {
	var fixed [10]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return 0, headerReadErr("gzip header", err)
	}
	if fixed[0] != gzipID1 || fixed[1] != gzipID2 || fixed[2] != methodDeflate {
		return 0, fmt.Errorf("gzip header: %w", ErrCorrupt)
	}
	flg := fixed[3]
	off := int64(10)

	const (
		flagHCRC    = 1 << 1
		flagExtra   = 1 << 2
		flagName    = 1 << 3
		flagComment = 1 << 4
	)

	if flg&flagExtra != 0 {
		var xlen [2]byte
		if _, err := io.ReadFull(br, xlen[:]); err != nil {
			return 0, headerReadErr("gzip extra field", err)
		}
		size := int64(binary.LittleEndian.Uint16(xlen[:]))
		if _, err := io.CopyN(io.Discard, br, size); err != nil {
			return 0, headerReadErr("gzip extra field", err)
		}
		off += 2 + size
	}
	for _, flag := range []byte{flagName, flagComment} {
		if flg&flag == 0 {
			continue
		}
		for {
			c, err := br.ReadByte()
			if err != nil {
				return 0, headerReadErr("gzip header string", err)
			}
			off++
			if c == 0 {
				break
			}
		}
	}
	if flg&flagHCRC != 0 {
		if _, err := io.CopyN(io.Discard, br, 2); err != nil {
			return 0, headerReadErr("gzip header crc", err)
		}
		off += 2
	}
	return off, nil
}

// verifyTrailer checks the container trailer against the running checksum
// and uncompressed size once the decoder has reached its logical end.
func verifyTrailer(br *bufio.Reader, mode Mode, digest hash.Hash32, size uint64) error {
	switch mode {
	case ModeGzip:
		var trailer [8]byte
		if _, err := io.ReadFull(br, trailer[:]); err != nil {
			return headerReadErr("gzip trailer", err)
		}
		if binary.LittleEndian.Uint32(trailer[:4]) != digest.Sum32() {
			return fmt.Errorf("gzip trailer: crc mismatch: %w", ErrCorrupt)
		}
		if binary.LittleEndian.Uint32(trailer[4:]) != uint32(size) {
			return fmt.Errorf("gzip trailer: size mismatch: %w", ErrCorrupt)
		}
	case ModeZlib:
		var trailer [4]byte
		if _, err := io.ReadFull(br, trailer[:]); err != nil {
			return headerReadErr("zlib trailer", err)
		}
		if binary.BigEndian.Uint32(trailer[:]) != digest.Sum32() {
			return fmt.Errorf("zlib trailer: adler mismatch: %w", ErrCorrupt)
		}
	}
	return nil
}
