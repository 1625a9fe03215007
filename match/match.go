// Package match assigns survey images to catalog targets by testing the
// four corners of each target's stamp against the image footprints.
package match

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/stampcut/footprint"
	"github.com/hupe1980/stampcut/partition"
)

// DefaultCapacity is the maximum number of images kept per target.
const DefaultCapacity = 8

const deg2rad = math.Pi / 180

// Point is a sky position in degrees.
type Point struct {
	RA  float64
	Dec float64
}

// Corners returns the bottom-left, bottom-right, top-left and top-right
// corners of a stamp of side stampArcsec centered on (ra, dec). The RA
// offset of each edge is widened by the cosine of the opposite edge's
// declination.
func Corners(ra, dec, stampArcsec float64) [4]Point {
	half := stampArcsec / 7200
	halfRad := half * deg2rad
	decRad := dec * deg2rad

	bottom := half / math.Cos(decRad-halfRad)
	top := half / math.Cos(decRad+halfRad)

	return [4]Point{
		{RA: ra + bottom, Dec: dec - half},
		{RA: ra - bottom, Dec: dec - half},
		{RA: ra + top, Dec: dec + half},
		{RA: ra - top, Dec: dec + half},
	}
}

// Contains reports whether p lies in the footprint. Both bounds are
// inclusive. RA differences are not wrapped at 0/360.
func Contains(fp footprint.Footprint, p Point) bool {
	if !fp.Valid {
		return false
	}
	if math.Abs(p.Dec-fp.Dec) > fp.HalfHeight {
		return false
	}
	return math.Abs(p.RA-fp.RA) <= fp.HalfWidth/math.Cos(p.Dec*deg2rad)
}

// Footprints is the read-only view the matcher scans.
type Footprints interface {
	Len() int
	At(i int) footprint.Footprint
}

// Matcher finds the images covering a target's stamp.
type Matcher struct {
	index       Footprints
	stampArcsec float64
	capacity    int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCapacity sets the maximum number of images kept per target.
func WithCapacity(k int) Option {
	return func(m *Matcher) {
		if k > 0 {
			m.capacity = k
		}
	}
}

// NewMatcher creates a matcher for stamps of side stampArcsec.
func NewMatcher(index Footprints, stampArcsec float64, opts ...Option) *Matcher {
	m := &Matcher{index: index, stampArcsec: stampArcsec, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Capacity returns the per-target image cap.
func (m *Matcher) Capacity() int { return m.capacity }

// Match returns the images covering the stamp at (ra, dec) in discovery
// order. For each corner the lowest-index containing image wins. truncated
// is set when more distinct images were found than the capacity allows.
func (m *Matcher) Match(ra, dec float64) (images []int, truncated bool) {
	n := m.index.Len()
	for _, p := range Corners(ra, dec, m.stampArcsec) {
		for i := 0; i < n; i++ {
			if !Contains(m.index.At(i), p) {
				continue
			}
			if !containsInt(images, i) {
				if len(images) == m.capacity {
					truncated = true
				} else {
					images = append(images, i)
				}
			}
			break
		}
	}
	return images, truncated
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// MatchAll matches every target. ra and dec must have equal length.
func (m *Matcher) MatchAll(ra, dec []float64) *Correspondence {
	c := &Correspondence{
		rows:      make([][]int, len(ra)),
		truncated: make([]bool, len(ra)),
		capacity:  m.capacity,
	}
	for i := range ra {
		c.rows[i], c.truncated[i] = m.Match(ra[i], dec[i])
	}
	return c
}

// Correspondence holds the matched images of every target. It is read-only
// after construction.
type Correspondence struct {
	rows      [][]int
	truncated []bool
	capacity  int
}

// Len returns the number of targets.
func (c *Correspondence) Len() int { return len(c.rows) }

// Row returns the images matched to target i. Callers must not modify it.
func (c *Correspondence) Row(i int) []int { return c.rows[i] }

// Truncated reports whether target i matched more images than the cap.
func (c *Correspondence) Truncated(i int) bool { return c.truncated[i] }

// TruncatedCount returns the number of truncated rows.
func (c *Correspondence) TruncatedCount() int {
	n := 0
	for _, t := range c.truncated {
		if t {
			n++
		}
	}
	return n
}

// Unmatched returns the number of targets with no image.
func (c *Correspondence) Unmatched() int {
	n := 0
	for _, r := range c.rows {
		if len(r) == 0 {
			n++
		}
	}
	return n
}

// Cells returns the fixed-width view: a row-major [Len][capacity] array with
// unused slots set to partition.NonIndex.
func (c *Correspondence) Cells() []int {
	cells := make([]int, len(c.rows)*c.capacity)
	for i := range cells {
		cells[i] = partition.NonIndex
	}
	for i, r := range c.rows {
		copy(cells[i*c.capacity:], r)
	}
	return cells
}

// UsedImages returns the set of images matched to at least one target.
func (c *Correspondence) UsedImages() *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range c.rows {
		for _, i := range r {
			bm.Add(uint32(i))
		}
	}
	return bm
}
