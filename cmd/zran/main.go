// Command zran builds checkpoint indexes over gzip/zlib/deflate streams and
// extracts uncompressed byte ranges from them, locally or over HTTP.
//
// Usage:
//
//	zran build   -in data.gz -index data.dflidx [-span N]
//	zran inspect -index data.dflidx
//	zran extract -in data.gz|URL -index data.dflidx -start N -length N [-parts N] [-out FILE]
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/benbart/zran"
	zranhttp "github.com/benbart/zran/http"
)

type config struct {
	in     string
	index  string
	out    string
	span   int64
	start  uint64
	length uint64
	parts  int
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfg := config{}
	fs.StringVar(&cfg.in, "in", "", "compressed input: local path or http(s) URL")
	fs.StringVar(&cfg.index, "index", "", "DFLIDX index path")
	fs.StringVar(&cfg.out, "out", "", "output path (default stdout)")
	fs.Int64Var(&cfg.span, "span", zran.DefaultSpan, "target uncompressed bytes between checkpoints")
	fs.Uint64Var(&cfg.start, "start", 0, "uncompressed start offset")
	fs.Uint64Var(&cfg.length, "length", 0, "uncompressed byte count")
	fs.IntVar(&cfg.parts, "parts", 1, "concurrent range parts for extract")
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatal(err)
	}

	var err error
	switch cmd {
	case "build":
		err = runBuild(cfg)
	case "inspect":
		err = runInspect(cfg)
	case "extract":
		err = runExtract(cfg)
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: zran build|inspect|extract [flags]")
	os.Exit(2)
}

func runBuild(cfg config) error {
	if cfg.in == "" || cfg.index == "" {
		return fmt.Errorf("build: -in and -index are required")
	}
	f, err := os.Open(cfg.in)
	if err != nil {
		return err
	}
	defer f.Close()

	index, err := zran.BuildIndex(f, zran.WithSpan(cfg.span))
	if err != nil {
		return err
	}
	if err := index.WriteFile(cfg.index); err != nil {
		return err
	}
	log.Printf("%s: %s stream, %d uncompressed bytes, %d checkpoints",
		cfg.index, index.Mode, index.Length, len(index.Points))
	return nil
}

func runInspect(cfg config) error {
	if cfg.index == "" {
		return fmt.Errorf("inspect: -index is required")
	}
	index, err := zran.ReadIndexFile(cfg.index)
	if err != nil {
		return err
	}
	log.Printf("mode=%s length=%d points=%d", index.Mode, index.Length, len(index.Points))
	for i, p := range index.Points {
		log.Printf("  point %3d: out=%d in=%d bits=%d window=%d", i, p.OutLoc, p.InLoc, p.Bits, len(p.Window))
	}
	return nil
}

func runExtract(cfg config) error {
	if cfg.in == "" || cfg.index == "" {
		return fmt.Errorf("extract: -in and -index are required")
	}
	index, err := zran.ReadIndexFile(cfg.index)
	if err != nil {
		return err
	}
	src, closeSrc, err := openSource(cfg.in)
	if err != nil {
		return err
	}
	defer closeSrc()

	length := cfg.length
	if length == 0 || length > index.Length-cfg.start {
		if cfg.start >= index.Length {
			return fmt.Errorf("extract: start beyond stream length %d", index.Length)
		}
		length = index.Length - cfg.start
	}

	parts := cfg.parts
	if parts < 1 {
		parts = 1
	}
	if uint64(parts) > length {
		parts = int(length)
	}

	// Each part runs an independent decompress call; the index and source
	// are safe to share.
	chunks := make([][]byte, parts)
	per := length / uint64(parts)
	var g errgroup.Group
	for i := 0; i < parts; i++ {
		start := cfg.start + uint64(i)*per
		n := per
		if i == parts-1 {
			n = length - uint64(i)*per
		}
		g.Go(func() error {
			part, err := zran.Decompress(src, index, start, n)
			if err != nil {
				return err
			}
			chunks[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if cfg.out != "" {
		f, err := os.Create(cfg.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	for _, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func openSource(in string) (io.ReaderAt, func(), error) {
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		src, err := zranhttp.NewSource(in)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
