package http_test

import (
	"bytes"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbart/zran"
	zranhttp "github.com/benbart/zran/http"
	"github.com/benbart/zran/internal/testutil"
)

func serve(t *testing.T, data []byte) string {
	t.Helper()
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestSourceReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello indexed world")
	src, err := zranhttp.NewSource(serve(t, data))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Size() != int64(len(data)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), len(data))
	}

	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{
			name:    "read from middle",
			bufSize: 7,
			offset:  6,
			wantN:   7,
			wantErr: nil,
			want:    "indexed",
		},
		{
			name:    "read crossing end returns EOF",
			bufSize: 10,
			offset:  int64(len(data)) - 5,
			wantN:   5,
			wantErr: io.EOF,
			want:    "world",
		},
		{
			name:    "read past end returns EOF",
			bufSize: 4,
			offset:  int64(len(data)) + 1,
			wantN:   0,
			wantErr: io.EOF,
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.bufSize)
			n, err := src.ReadAt(buf, tt.offset)
			if err != tt.wantErr {
				t.Fatalf("ReadAt() error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Fatalf("ReadAt() n = %d, want %d", n, tt.wantN)
			}
			if got := string(buf[:n]); got != tt.want {
				t.Fatalf("ReadAt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSourceRejectsNonRangeServer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		_, _ = w.Write([]byte("all of it"))
	}))
	t.Cleanup(server.Close)

	if _, err := zranhttp.NewSource(server.URL); err == nil {
		t.Fatal("NewSource() expected error for a server without range support")
	}
}

// TestDecompressOverHTTP drives the whole flow against a remote stream:
// index built from a local copy, ranges served without fetching the body.
func TestDecompressOverHTTP(t *testing.T) {
	t.Parallel()

	data := testutil.Payload(t, 1<<20)
	compressed := testutil.CompressGzip(t, data)

	index, err := zran.BuildIndex(bytes.NewReader(compressed), zran.WithSpan(1<<17))
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	src, err := zranhttp.NewSource(serve(t, compressed))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	got, err := zran.Decompress(src, index, 700_000, 50_000)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(data[700_000:750_000], got) {
		t.Fatal("Decompress() over HTTP differs from the original data")
	}
}
