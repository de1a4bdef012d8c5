// Package codecs compresses lake data files.
package codecs

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec names a compression scheme for data files.
type Codec string

const (
	None   Codec = "none"
	Gzip   Codec = "gzip"
	Snappy Codec = "snappy"
	Zstd   Codec = "zstd"
)

// All lists every supported codec, in the order offered on the command line.
var All = []string{string(Zstd), string(Snappy), string(Gzip), string(None)}

// Parse returns the named codec, where an empty name is None.
func Parse(name string) (Codec, error) {
	switch Codec(name) {
	case "", None:
		return None, nil
	case Gzip, Snappy, Zstd:
		return Codec(name), nil
	}

	return "", fmt.Errorf("unsupported codec %q", name)
}

func (c Codec) String() string {
	return string(c)
}

// Extension is appended to data file names.
func (c Codec) Extension() string {
	switch c {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".sz"
	case Zstd:
		return ".zst"
	}

	return ""
}

// NewWriter returns a WriteCloser wrapping w that encodes with the codec. Close flushes
// any buffered content but does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	}

	return nil, fmt.Errorf("unsupported codec %q", string(c))
}

// NewReader returns a ReadCloser decoding r. Close releases decoder state but does not
// close r.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case None, "":
		return ioutil.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Snappy:
		return ioutil.NopCloser(snappy.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return zstdReadCloser{dec}, nil
	}

	return nil, fmt.Errorf("unsupported codec %q", string(c))
}

// Encode compresses content in a single pass.
func (c Codec) Encode(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// zstd.Decoder.Close has no error return
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
