// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Forked from Go stdlib compress/flate/inflate.go.
// Changes: the decompressor is a reusable Session that reports deflate
// block boundaries, captures its compressed bit position for checkpoints,
// and can resume mid-byte from a seeded history (zlib inflatePrime
// analogue). Stream rewinding and the stdlib Reset/Close surface are gone;
// a Session is scoped to one decode.

package flate

import (
	"bufio"
	"io"
	"math/bits"
	"strconv"
	"sync"
)

const (
	maxCodeLen     = 16
	maxNumLit      = 286
	maxNumDist     = 30
	numCodes       = 19
	endBlockMarker = 256
)

var fixedOnce sync.Once
var fixedHuffmanDecoder huffmanDecoder

// CorruptInputError reports the presence of corrupt input at a given
// compressed byte offset, relative to the start of the session's reader.
type CorruptInputError int64

func (e CorruptInputError) Error() string {
	return "flate: corrupt input before offset " + strconv.FormatInt(int64(e), 10)
}

// InternalError reports an inconsistency in the decoder itself.
type InternalError string

func (e InternalError) Error() string { return "flate: internal error: " + string(e) }

// Reader is the input interface a Session consumes. Sessions read byte at
// a time and never over-read past what they decode.
type Reader interface {
	io.Reader
	io.ByteReader
}

const (
	huffmanChunkBits  = 9
	huffmanNumChunks  = 1 << huffmanChunkBits
	huffmanCountMask  = 15
	huffmanValueShift = 4
)

type huffmanDecoder struct {
	min      int
	chunks   [huffmanNumChunks]uint32
	links    [][]uint32
	linkMask uint32
}

// init initializes the decoder from an array of code lengths.
// It returns false for degenerate or over-subscribed code sets.
func (h *huffmanDecoder) init(lengths []int) bool {
	if h.min != 0 {
		*h = huffmanDecoder{}
	}

	var count [maxCodeLen]int
	var min, max int
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		count[n]++
	}

	if max == 0 {
		return true
	}

	code := 0
	var nextcode [maxCodeLen]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextcode[i] = code
		code += count[i]
	}

	if code != 1<<uint(max) && !(code == 1 && max == 1) {
		return false
	}

	h.min = min
	if max > huffmanChunkBits {
		numLinks := 1 << (uint(max) - huffmanChunkBits)
		h.linkMask = uint32(numLinks - 1)

		link := nextcode[huffmanChunkBits+1] >> 1
		h.links = make([][]uint32, huffmanNumChunks-link)
		for j := uint(link); j < huffmanNumChunks; j++ {
			reverse := int(bits.Reverse16(uint16(j)))
			reverse >>= uint(16 - huffmanChunkBits)
			off := j - uint(link)
			h.chunks[reverse] = uint32(off<<huffmanValueShift | (huffmanChunkBits + 1))
			h.links[off] = make([]uint32, numLinks)
		}
	}

	for i, n := range lengths {
		if n == 0 {
			continue
		}
		code := nextcode[n]
		nextcode[n]++
		chunk := uint32(i<<huffmanValueShift | n)
		reverse := int(bits.Reverse16(uint16(code)))
		reverse >>= uint(16 - n)
		if n <= huffmanChunkBits {
			for off := reverse; off < len(h.chunks); off += 1 << uint(n) {
				h.chunks[off] = chunk
			}
		} else {
			j := reverse & (huffmanNumChunks - 1)
			value := h.chunks[j] >> huffmanValueShift
			linktab := h.links[value]
			reverse >>= huffmanChunkBits
			for off := reverse; off < len(linktab); off += 1 << uint(n-huffmanChunkBits) {
				linktab[off] = chunk
			}
		}
	}

	return true
}

// Session is a raw-deflate decode session. It decodes exactly one logical
// stream: Read returns io.EOF at the final block's end, a
// CorruptInputError on invalid bit patterns, and io.ErrUnexpectedEOF when
// input runs out first.
//
// Setting OnBlockEnd before the first Read makes the session report every
// deflate block boundary, the only positions from which decoding can
// safely resume. Inside the callback, Checkpoint, HistoryCopy and
// OutputTotal describe the resumable state.
type Session struct {
	r    Reader
	rBuf *bufio.Reader

	// compressed bytes consumed from r
	roffset int64

	// input bits, in top of b
	b  uint32
	nb uint

	// huffman decoders for literal/length, distance
	h1, h2 huffmanDecoder

	// length arrays used to define huffman codes
	bits     *[maxNumLit + maxNumDist]int
	codebits *[numCodes]int

	// output history, buffer
	dict dictDecoder

	buf [4]byte

	// next step in the decompression, and decompression state
	step      func(*Session)
	stepState int
	final     bool
	err       error
	toRead    []byte
	hl, hd    *huffmanDecoder
	copyLen   int
	copyDist  int

	// OnBlockEnd is called at every deflate block boundary with final set
	// for the last block of the stream.
	OnBlockEnd func(final bool)
}

// NewSession returns a Session decoding the raw deflate stream in r,
// with its back-reference history seeded from the trailing bytes of
// history (which may be nil for a stream decoded from its start).
func NewSession(r io.Reader, history []byte) *Session {
	fixedOnce.Do(initFixedHuffmanDecoder)

	s := &Session{
		bits:     new([maxNumLit + maxNumDist]int),
		codebits: new([numCodes]int),
		step:     (*Session).nextBlock,
	}
	if rr, ok := r.(Reader); ok {
		s.r = rr
	} else {
		s.rBuf = bufio.NewReader(r)
		s.r = s.rBuf
	}
	s.dict.init(WindowSize, history)
	return s
}

// Prime injects count unconsumed bits (the high bits of a partially decoded
// byte) into the bit buffer before any input is read, resuming a stream
// mid-byte. It must be called before the first Read.
func (s *Session) Prime(count uint8, value byte) {
	s.b = uint32(value)
	s.nb = uint(count)
}

// Checkpoint returns the session's resumable compressed position: the
// offset of the next byte to consume, relative to the start of the
// session's reader, and how many low bits of that byte are already spent.
// At a block boundary the bit backlog is at most 7 bits, so the position
// always lands on or just before the next whole byte.
func (s *Session) Checkpoint() (offset int64, consumedBits uint8) {
	k := s.nb % 8
	offset = s.roffset - int64(s.nb/8)
	if k != 0 {
		offset--
		consumedBits = uint8(8 - k)
	}
	return offset, consumedBits
}

// HistoryCopy returns an owned copy of the trailing decoded output, up to
// WindowSize bytes, in decompression order.
func (s *Session) HistoryCopy() []byte {
	return s.dict.historyCopy()
}

// OutputTotal returns the total number of uncompressed bytes produced so
// far, including bytes buffered but not yet returned by Read. It is exact
// at block boundaries.
func (s *Session) OutputTotal() int64 {
	return s.dict.totalWritten
}

var codeOrder = [...]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

func (s *Session) nextBlock() {
	for s.nb < 1+2 {
		if s.err = s.moreBits(); s.err != nil {
			return
		}
	}
	s.final = s.b&1 == 1
	s.b >>= 1
	typ := s.b & 3
	s.b >>= 2
	s.nb -= 1 + 2
	switch typ {
	case 0:
		s.dataBlock()
	case 1:
		s.hl = &fixedHuffmanDecoder
		s.hd = nil
		s.huffmanBlock()
	case 2:
		if s.err = s.readHuffman(); s.err != nil {
			break
		}
		s.hl = &s.h1
		s.hd = &s.h2
		s.huffmanBlock()
	default:
		s.err = CorruptInputError(s.roffset)
	}
}

func (s *Session) Read(b []byte) (int, error) {
	for {
		if len(s.toRead) > 0 {
			n := copy(b, s.toRead)
			s.toRead = s.toRead[n:]
			if len(s.toRead) == 0 {
				return n, s.err
			}
			return n, nil
		}
		if s.err != nil {
			return 0, s.err
		}
		s.step(s)
		if s.err != nil && len(s.toRead) == 0 {
			s.toRead = s.dict.readFlush()
		}
	}
}

func (s *Session) readHuffman() error {
	for s.nb < 5+5+4 {
		if err := s.moreBits(); err != nil {
			return err
		}
	}
	nlit := int(s.b&0x1F) + 257
	if nlit > maxNumLit {
		return CorruptInputError(s.roffset)
	}
	s.b >>= 5
	ndist := int(s.b&0x1F) + 1
	if ndist > maxNumDist {
		return CorruptInputError(s.roffset)
	}
	s.b >>= 5
	nclen := int(s.b&0xF) + 4
	s.b >>= 4
	s.nb -= 5 + 5 + 4

	for i := 0; i < nclen; i++ {
		for s.nb < 3 {
			if err := s.moreBits(); err != nil {
				return err
			}
		}
		s.codebits[codeOrder[i]] = int(s.b & 0x7)
		s.b >>= 3
		s.nb -= 3
	}
	for i := nclen; i < len(codeOrder); i++ {
		s.codebits[codeOrder[i]] = 0
	}
	if !s.h1.init(s.codebits[0:]) {
		return CorruptInputError(s.roffset)
	}

	for i, n := 0, nlit+ndist; i < n; {
		x, err := s.huffSym(&s.h1)
		if err != nil {
			return err
		}
		if x < 16 {
			s.bits[i] = x
			i++
			continue
		}
		var rep int
		var nb uint
		var b int
		switch x {
		default:
			return InternalError("unexpected length code")
		case 16:
			rep = 3
			nb = 2
			if i == 0 {
				return CorruptInputError(s.roffset)
			}
			b = s.bits[i-1]
		case 17:
			rep = 3
			nb = 3
			b = 0
		case 18:
			rep = 11
			nb = 7
			b = 0
		}
		for s.nb < nb {
			if err := s.moreBits(); err != nil {
				return err
			}
		}
		rep += int(s.b & uint32(1<<nb-1))
		s.b >>= nb
		s.nb -= nb
		if i+rep > n {
			return CorruptInputError(s.roffset)
		}
		for j := 0; j < rep; j++ {
			s.bits[i] = b
			i++
		}
	}

	if !s.h1.init(s.bits[0:nlit]) || !s.h2.init(s.bits[nlit:nlit+ndist]) {
		return CorruptInputError(s.roffset)
	}

	if s.h1.min < s.bits[endBlockMarker] {
		s.h1.min = s.bits[endBlockMarker]
	}

	return nil
}

func (s *Session) huffmanBlock() {
	const (
		stateInit = iota
		stateDict
	)

	switch s.stepState {
	case stateInit:
		goto readLiteral
	case stateDict:
		goto copyHistory
	}

readLiteral:
	{
		v, err := s.huffSym(s.hl)
		if err != nil {
			s.err = err
			return
		}
		var n uint
		var length int
		switch {
		case v < 256:
			s.dict.writeByte(byte(v))
			if s.dict.availWrite() == 0 {
				s.toRead = s.dict.readFlush()
				s.step = (*Session).huffmanBlock
				s.stepState = stateInit
				return
			}
			goto readLiteral
		case v == 256:
			s.finishBlock()
			return
		case v < 265:
			length = v - (257 - 3)
			n = 0
		case v < 269:
			length = v*2 - (265*2 - 11)
			n = 1
		case v < 273:
			length = v*4 - (269*4 - 19)
			n = 2
		case v < 277:
			length = v*8 - (273*8 - 35)
			n = 3
		case v < 281:
			length = v*16 - (277*16 - 67)
			n = 4
		case v < 285:
			length = v*32 - (281*32 - 131)
			n = 5
		case v < maxNumLit:
			length = 258
			n = 0
		default:
			s.err = CorruptInputError(s.roffset)
			return
		}
		if n > 0 {
			for s.nb < n {
				if err = s.moreBits(); err != nil {
					s.err = err
					return
				}
			}
			length += int(s.b & uint32(1<<n-1))
			s.b >>= n
			s.nb -= n
		}

		var dist int
		if s.hd == nil {
			for s.nb < 5 {
				if err = s.moreBits(); err != nil {
					s.err = err
					return
				}
			}
			dist = int(bits.Reverse8(uint8(s.b & 0x1F << 3)))
			s.b >>= 5
			s.nb -= 5
		} else {
			if dist, err = s.huffSym(s.hd); err != nil {
				s.err = err
				return
			}
		}

		switch {
		case dist < 4:
			dist++
		case dist < maxNumDist:
			nb := uint(dist-2) >> 1
			extra := (dist & 1) << nb
			for s.nb < nb {
				if err = s.moreBits(); err != nil {
					s.err = err
					return
				}
			}
			extra |= int(s.b & uint32(1<<nb-1))
			s.b >>= nb
			s.nb -= nb
			dist = 1<<(nb+1) + 1 + extra
		default:
			s.err = CorruptInputError(s.roffset)
			return
		}

		if dist > s.dict.histSize() {
			s.err = CorruptInputError(s.roffset)
			return
		}

		s.copyLen, s.copyDist = length, dist
		goto copyHistory
	}

copyHistory:
	{
		cnt := s.dict.tryWriteCopy(s.copyDist, s.copyLen)
		if cnt == 0 {
			cnt = s.dict.writeCopy(s.copyDist, s.copyLen)
		}
		s.copyLen -= cnt

		if s.dict.availWrite() == 0 || s.copyLen > 0 {
			s.toRead = s.dict.readFlush()
			s.step = (*Session).huffmanBlock
			s.stepState = stateDict
			return
		}
		goto readLiteral
	}
}

func (s *Session) dataBlock() {
	// Stored blocks are byte aligned; drop the bit backlog.
	s.nb = 0
	s.b = 0

	nr, err := io.ReadFull(s.r, s.buf[0:4])
	s.roffset += int64(nr)
	if err != nil {
		s.err = noEOF(err)
		return
	}
	n := int(s.buf[0]) | int(s.buf[1])<<8
	nn := int(s.buf[2]) | int(s.buf[3])<<8
	if uint16(nn) != uint16(^n) {
		s.err = CorruptInputError(s.roffset)
		return
	}

	if n == 0 {
		s.toRead = s.dict.readFlush()
		s.finishBlock()
		return
	}

	s.copyLen = n
	s.copyData()
}

func (s *Session) copyData() {
	buf := s.dict.writeSlice()
	if len(buf) > s.copyLen {
		buf = buf[:s.copyLen]
	}

	cnt, err := io.ReadFull(s.r, buf)
	s.roffset += int64(cnt)
	s.copyLen -= cnt
	s.dict.writeMark(cnt)
	if err != nil {
		s.err = noEOF(err)
		return
	}

	if s.dict.availWrite() == 0 || s.copyLen > 0 {
		s.toRead = s.dict.readFlush()
		s.step = (*Session).copyData
		return
	}
	s.finishBlock()
}

func (s *Session) finishBlock() {
	if s.OnBlockEnd != nil {
		s.OnBlockEnd(s.final)
	}
	if s.final {
		if s.dict.availRead() > 0 {
			s.toRead = s.dict.readFlush()
		}
		s.err = io.EOF
	}
	s.step = (*Session).nextBlock
}

func noEOF(e error) error {
	if e == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return e
}

func (s *Session) moreBits() error {
	c, err := s.r.ReadByte()
	if err != nil {
		return noEOF(err)
	}
	s.roffset++
	s.b |= uint32(c) << s.nb
	s.nb += 8
	return nil
}

func (s *Session) huffSym(h *huffmanDecoder) (int, error) {
	n := uint(h.min)
	nb, b := s.nb, s.b
	for {
		for nb < n {
			c, err := s.r.ReadByte()
			if err != nil {
				s.b = b
				s.nb = nb
				return 0, noEOF(err)
			}
			s.roffset++
			b |= uint32(c) << (nb & 31)
			nb += 8
		}
		chunk := h.chunks[b&(huffmanNumChunks-1)]
		n = uint(chunk & huffmanCountMask)
		if n > huffmanChunkBits {
			chunk = h.links[chunk>>huffmanValueShift][(b>>huffmanChunkBits)&h.linkMask]
			n = uint(chunk & huffmanCountMask)
		}
		if n <= nb {
			if n == 0 {
				s.b = b
				s.nb = nb
				s.err = CorruptInputError(s.roffset)
				return 0, s.err
			}
			s.b = b >> (n & 31)
			s.nb = nb - n
			return int(chunk >> huffmanValueShift), nil
		}
	}
}

func initFixedHuffmanDecoder() {
	var bits [288]int
	for i := 0; i < 144; i++ {
		bits[i] = 8
	}
	for i := 144; i < 256; i++ {
		bits[i] = 9
	}
	for i := 256; i < 280; i++ {
		bits[i] = 7
	}
	for i := 280; i < 288; i++ {
		bits[i] = 8
	}
	fixedHuffmanDecoder.init(bits[:])
}
