// Package frame reads base-data files into memory, transparently
// decompressing gzip and bzip2 streams.
package frame

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Compression names the container a stream was wrapped in.
type Compression string

const (
	None  Compression = "none"
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
)

// Sniff classifies the leading bytes of a stream.
func Sniff(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, bzip2Magic):
		return Bzip2
	default:
		return None
	}
}

// Read decompresses r if needed and returns its full contents.
func Read(r io.Reader) ([]byte, Compression, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(bzip2Magic))
	if err != nil && err != io.EOF {
		return nil, None, fmt.Errorf("peek stream: %w", err)
	}
	c := Sniff(head)
	var src io.Reader = br
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	case Bzip2:
		src = bzip2.NewReader(br)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, c, fmt.Errorf("read %s stream: %w", c, err)
	}
	return data, c, nil
}

// ReadFile reads the named file with Read.
func ReadFile(path string) ([]byte, Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, None, err
	}
	defer f.Close()
	return Read(f)
}
