package testutil

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/fits"
	"github.com/hupe1980/stampcut/wcs"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// SkyPoint returns a position within radius degrees of (ra, dec) on both
// axes, with the RA offset widened by 1/cos(dec).
func (r *RNG) SkyPoint(ra, dec, radius float64) (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dd := (2*r.rand.Float64() - 1) * radius
	dr := (2*r.rand.Float64() - 1) * radius / math.Cos(dec*math.Pi/180)
	return ra + dr, dec + dd
}

// FillUniformRange fills dst with values in [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*(maxVal-minVal)
	}
}

// TileSpec describes a synthetic survey tile.
type TileSpec struct {
	// RA and Dec of the central pixel (Naxis1/2, Naxis2/2), degrees.
	RA, Dec float64
	Naxis1  int
	Naxis2  int
	// Scale is the pixel size in arcseconds.
	Scale float64
	// Fill returns the value of the 1-based pixel (x, y). Nil fills with 1.
	Fill func(x, y int) float32
}

// WCS returns the TAN projection of the tile. RA grows toward lower x.
func (s TileSpec) WCS() *wcs.WCS {
	d := s.Scale / 3600
	w, err := wcs.New(wcs.TAN,
		[2]float64{float64(s.Naxis1 / 2), float64(s.Naxis2 / 2)},
		[2]float64{s.RA, s.Dec},
		[2][2]float64{{-d, 0}, {0, d}})
	if err != nil {
		panic(err)
	}
	return w
}

// Pixels returns the tile data, x fastest.
func (s TileSpec) Pixels() []float32 {
	data := make([]float32, s.Naxis1*s.Naxis2)
	for y := 1; y <= s.Naxis2; y++ {
		for x := 1; x <= s.Naxis1; x++ {
			v := float32(1)
			if s.Fill != nil {
				v = s.Fill(x, y)
			}
			data[(y-1)*s.Naxis1+x-1] = v
		}
	}
	return data
}

// TileBytes encodes the tile as a FITS file.
func TileBytes(s TileSpec) ([]byte, error) {
	h := fits.NewHeader()
	if err := s.WCS().Apply(h); err != nil {
		return nil, err
	}
	return fits.EncodeBytes(h, s.Pixels(), s.Naxis1, s.Naxis2)
}

// PutTile encodes the tile and stores it under name.
func PutTile(ctx context.Context, store blobstore.BlobStore, name string, s TileSpec) error {
	data, err := TileBytes(s)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}
