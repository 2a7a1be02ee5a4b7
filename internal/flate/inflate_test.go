package flate

import (
	"bytes"
	"errors"
	"io"
	"testing"

	kflate "github.com/klauspost/compress/flate"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := kflate.NewWriter(&buf, kflate.DefaultCompression)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func payload(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i>>9)
	}
	return out
}

func TestSessionDecodesWholeStream(t *testing.T) {
	t.Parallel()

	data := payload(256 * 1024)
	session := NewSession(bytes.NewReader(deflate(t, data)), nil)

	got, err := io.ReadAll(session)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(data, got) {
		t.Fatal("decoded stream differs from input")
	}
	if session.OutputTotal() != int64(len(data)) {
		t.Fatalf("OutputTotal() = %d, want %d", session.OutputTotal(), len(data))
	}
}

func TestSessionResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	data := payload(512 * 1024)
	compressed := deflate(t, data)

	// First pass: capture state at the first non-final block boundary.
	var (
		cpOffset int64
		cpBits   uint8
		cpOut    int64
		cpWin    []byte
	)
	session := NewSession(bytes.NewReader(compressed), nil)
	session.OnBlockEnd = func(final bool) {
		if final || cpOut != 0 {
			return
		}
		cpOffset, cpBits = session.Checkpoint()
		cpOut = session.OutputTotal()
		cpWin = session.HistoryCopy()
	}
	if _, err := io.Copy(io.Discard, session); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if cpOut == 0 {
		t.Skip("stream compressed into a single block; no resumable boundary")
	}

	// Second pass: resume mid-stream from the captured state.
	r := bytes.NewReader(compressed[cpOffset:])
	resumed := NewSession(r, cpWin)
	if cpBits > 0 {
		c, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte() error = %v", err)
		}
		resumed.Prime(8-cpBits, c>>cpBits)
	}
	got, err := io.ReadAll(resumed)
	if err != nil {
		t.Fatalf("resume pass: %v", err)
	}
	if !bytes.Equal(data[cpOut:], got) {
		t.Fatalf("resumed output differs at checkpoint out=%d in=%d bits=%d", cpOut, cpOffset, cpBits)
	}
}

func TestSessionReportsCorruptInput(t *testing.T) {
	t.Parallel()

	garbage := payload(4096)
	session := NewSession(bytes.NewReader(garbage), nil)
	_, err := io.ReadAll(session)
	if err == nil {
		t.Fatal("expected an error decoding garbage")
	}
	var corrupt CorruptInputError
	if !errors.As(err, &corrupt) && err != io.ErrUnexpectedEOF {
		t.Fatalf("error = %v, want corrupt input or unexpected EOF", err)
	}
}

func TestSessionReportsExhaustedInput(t *testing.T) {
	t.Parallel()

	compressed := deflate(t, payload(128*1024))
	session := NewSession(bytes.NewReader(compressed[:len(compressed)/2]), nil)
	_, err := io.ReadAll(session)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("error = %v, want io.ErrUnexpectedEOF", err)
	}
}
