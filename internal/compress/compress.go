// Package compress handles the stream codecs survey tiles and stamps may be
// stored with. The codec is chosen from the object name suffix.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a stream compression format.
type Codec uint8

const (
	// None means the object is stored as plain FITS.
	None Codec = iota
	Gzip
	Zstd
	LZ4
)

var extensions = map[Codec]string{
	Gzip: ".gz",
	Zstd: ".zst",
	LZ4:  ".lz4",
}

// Extension returns the file suffix of the codec, or "" for None.
func (c Codec) Extension() string { return extensions[c] }

func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ForName returns the codec implied by the suffix of name.
func ForName(name string) Codec {
	lower := strings.ToLower(name)
	for c, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return c
		}
	}
	return None
}

// Parse maps a configuration value to a codec. The empty string and "none"
// both mean None.
func Parse(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return None, fmt.Errorf("compress: unknown codec %q", s)
}

var zstdDecoderPool sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Decode returns the decompressed contents of r.
func Decode(c Codec, r io.Reader) ([]byte, error) {
	switch c {
	case None:
		return io.ReadAll(r)
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compress: gzip: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer putZstdDecoder(dec)
		if err := dec.Reset(r); err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		return io.ReadAll(dec)
	case LZ4:
		return io.ReadAll(lz4.NewReader(r))
	}
	return nil, fmt.Errorf("compress: unknown codec %d", c)
}

// Encode compresses data with c.
func Encode(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(c, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewWriter returns a writer compressing into w. Close flushes the codec
// but does not close w.
func NewWriter(c Codec, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case LZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("compress: unknown codec %d", c)
}
