// Package footprint approximates the sky coverage of each survey image by an
// axis-aligned RA/Dec rectangle.
package footprint

import (
	"context"
	"fmt"

	"github.com/hupe1980/stampcut/coordinator"
	"github.com/hupe1980/stampcut/survey"
)

// arcsecPerHalfDegree converts a pixel count times arcsec/pixel into a half
// extent in degrees.
const arcsecPerHalfDegree = 7200

// Footprint is the rectangle covered by one image, in degrees.
type Footprint struct {
	RA         float64
	Dec        float64
	HalfWidth  float64
	HalfHeight float64
	// Valid is false when the image could not be read. Invalid footprints
	// never match.
	Valid bool
}

// PixelToSkyer maps image pixels to sky coordinates.
type PixelToSkyer interface {
	PixelToSky(x, y float64) (ra, dec float64, err error)
}

// FromImage computes the footprint of an image of naxis1 x naxis2 pixels at
// resolution arcsec/pixel. The center is the sky position of pixel
// (naxis1/2, naxis2/2), halves kept.
func FromImage(naxis1, naxis2 int, w PixelToSkyer, resolution float64) (Footprint, error) {
	ra, dec, err := w.PixelToSky(float64(naxis1)/2, float64(naxis2)/2)
	if err != nil {
		return Footprint{}, err
	}
	return Footprint{
		RA:         ra,
		Dec:        dec,
		HalfWidth:  float64(naxis1) / arcsecPerHalfDegree * resolution,
		HalfHeight: float64(naxis2) / arcsecPerHalfDegree * resolution,
		Valid:      true,
	}, nil
}

// Index holds one footprint per survey image; row i belongs to image i.
type Index struct {
	footprints []Footprint
	errs       []error
}

// NewIndex wraps precomputed footprints.
func NewIndex(fps []Footprint) *Index {
	return &Index{footprints: fps, errs: make([]error, len(fps))}
}

// Len returns the number of images.
func (x *Index) Len() int { return len(x.footprints) }

// At returns the footprint of image i.
func (x *Index) At(i int) Footprint { return x.footprints[i] }

// Err returns why footprint i is invalid, or nil.
func (x *Index) Err(i int) error { return x.errs[i] }

// Invalid returns the images whose footprint could not be computed.
func (x *Index) Invalid() []int {
	var out []int
	for i, fp := range x.footprints {
		if !fp.Valid {
			out = append(out, i)
		}
	}
	return out
}

// Opener opens a survey image with its WCS.
type Opener interface {
	Open(ctx context.Context, name string) (*survey.Image, error)
}

// Build computes the footprints of names in parallel. An image that cannot
// be opened or projected gets an invalid footprint and its error is kept in
// the index; only cancellation aborts the build.
func Build(ctx context.Context, c *coordinator.Coordinator, open Opener, names []string, resolution float64) (*Index, coordinator.Stats, error) {
	x := &Index{
		footprints: make([]Footprint, len(names)),
		errs:       make([]error, len(names)),
	}

	stats, err := c.Run(ctx, coordinator.PhaseFootprint, len(names), func(ctx context.Context, _ int, i int) error {
		img, err := open.Open(ctx, names[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			x.errs[i] = err
			return nil
		}
		defer img.Close()

		fp, err := FromImage(img.Naxis1, img.Naxis2, img.WCS, resolution)
		if err != nil {
			x.errs[i] = fmt.Errorf("footprint: %s: %w", names[i], err)
			return nil
		}
		x.footprints[i] = fp
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return x, stats, nil
}
