// Package survey locates survey tiles in a blob store and opens them as
// images with a celestial WCS.
package survey

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/fits"
	"github.com/hupe1980/stampcut/internal/compress"
	"github.com/hupe1980/stampcut/internal/resource"
	"github.com/hupe1980/stampcut/wcs"
)

var (
	// ErrNoImages is returned when a pattern matches nothing.
	ErrNoImages = errors.New("survey: no images match pattern")
	// ErrWeightCountMismatch is returned when image and weight lists differ
	// in length.
	ErrWeightCountMismatch = errors.New("survey: image and weight counts differ")
)

// Enumerate returns the names in store matching pattern (path.Match
// syntax), sorted. The index of a name in the result is its image index for
// the rest of the run.
func Enumerate(ctx context.Context, store blobstore.BlobStore, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("survey: pattern %q: %w", pattern, err)
	}

	candidates, err := store.List(ctx, staticPrefix(pattern))
	if err != nil {
		return nil, fmt.Errorf("survey: list %q: %w", pattern, err)
	}

	var names []string
	for _, name := range candidates {
		if ok, _ := path.Match(pattern, name); ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, pattern)
	}
	sort.Strings(names)
	return names, nil
}

// staticPrefix returns the directory part of pattern before the first
// wildcard, including its trailing slash.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, `*?[\`)
	if i < 0 {
		i = len(pattern)
	}
	j := strings.LastIndexByte(pattern[:i], '/')
	if j < 0 {
		return ""
	}
	return pattern[:j+1]
}

// Tile is a survey image with its optional weight map.
type Tile struct {
	Image  string
	Weight string
}

// Pair zips image and weight names by index. weights may be nil.
func Pair(images, weights []string) ([]Tile, error) {
	if weights != nil && len(weights) != len(images) {
		return nil, fmt.Errorf("%w: %d images, %d weights", ErrWeightCountMismatch, len(images), len(weights))
	}
	tiles := make([]Tile, len(images))
	for i, name := range images {
		tiles[i].Image = name
		if weights != nil {
			tiles[i].Weight = weights[i]
		}
	}
	return tiles, nil
}

// HeaderParser runs a header-to-WCS parse as a critical section.
type HeaderParser interface {
	ParseHeader(fn func() error) error
}

// Source opens tiles from a store.
type Source struct {
	store  blobstore.BlobStore
	rc     *resource.Controller
	parser HeaderParser
}

// NewSource creates a Source. parser serializes the header-to-WCS parse;
// pass nil to leave it unguarded. rc may be nil.
func NewSource(store blobstore.BlobStore, parser HeaderParser, rc *resource.Controller) *Source {
	if parser == nil {
		parser = directParser{}
	}
	return &Source{store: store, rc: rc, parser: parser}
}

type directParser struct{}

func (directParser) ParseHeader(fn func() error) error { return fn() }

// Image is an opened tile.
type Image struct {
	Name   string
	Header *fits.Header
	WCS    *wcs.WCS
	Naxis1 int
	Naxis2 int

	pixels  *fits.ImageReader
	blob    blobstore.Blob
	release func()
}

// Open reads the header of name and parses its WCS. Compressed tiles
// (.gz, .zst, .lz4) are decompressed into memory; each holds a tile slot
// of the resource controller until Close.
func (s *Source) Open(ctx context.Context, name string) (*Image, error) {
	img, err := s.openPixels(ctx, name)
	if err != nil {
		return nil, err
	}

	var w *wcs.WCS
	err = s.parser.ParseHeader(func() error {
		var perr error
		w, perr = wcs.FromHeader(img.Header)
		return perr
	})
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("survey: %s: %w", name, err)
	}
	img.WCS = w
	return img, nil
}

// OpenPixels opens name without a WCS. Weight maps are read this way.
func (s *Source) OpenPixels(ctx context.Context, name string) (*Image, error) {
	return s.openPixels(ctx, name)
}

func (s *Source) openPixels(ctx context.Context, name string) (*Image, error) {
	blob, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("survey: open %s: %w", name, err)
	}

	img := &Image{Name: name, blob: blob}

	var r fits.ReaderAt = blob
	if codec := compress.ForName(name); codec != compress.None {
		if err := s.rc.AcquireTile(ctx); err != nil {
			_ = blob.Close()
			return nil, err
		}
		img.release = s.rc.ReleaseTile

		data, err := compress.Decode(codec, blobstore.NewReader(ctx, blob))
		if err != nil {
			img.Close()
			return nil, fmt.Errorf("survey: decompress %s: %w", name, err)
		}
		r = fits.BytesReaderAt(data)
	}

	h, off, err := fits.ReadHeader(ctx, r)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("survey: header %s: %w", name, err)
	}
	pix, err := fits.NewImageReader(r, h, off)
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("survey: %s: %w", name, err)
	}

	img.Header = h
	img.pixels = pix
	img.Naxis1 = pix.Naxis1
	img.Naxis2 = pix.Naxis2
	return img, nil
}

// ReadWindow returns the pixels of the 1-based inclusive rectangle
// [fx,lx] x [fy,ly], x fastest.
func (img *Image) ReadWindow(ctx context.Context, fx, fy, lx, ly int) ([]float32, error) {
	return img.pixels.ReadWindow(ctx, fx, fy, lx, ly)
}

// SkyToPixel converts a sky position to pixel coordinates of the image.
func (img *Image) SkyToPixel(ra, dec float64) (float64, float64, error) {
	return img.WCS.SkyToPixel(ra, dec)
}

// PixelToSky converts pixel coordinates of the image to a sky position.
func (img *Image) PixelToSky(x, y float64) (float64, float64, error) {
	return img.WCS.PixelToSky(x, y)
}

// Close releases the blob and any tile slot.
func (img *Image) Close() {
	if img.blob != nil {
		_ = img.blob.Close()
		img.blob = nil
	}
	if img.release != nil {
		img.release()
		img.release = nil
	}
}
