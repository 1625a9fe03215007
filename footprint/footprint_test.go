package footprint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/coordinator"
	"github.com/hupe1980/stampcut/survey"
	"github.com/hupe1980/stampcut/testutil"
)

type fixedSky struct {
	ra, dec float64
	gotX    float64
	gotY    float64
}

func (f *fixedSky) PixelToSky(x, y float64) (float64, float64, error) {
	f.gotX, f.gotY = x, y
	return f.ra, f.dec, nil
}

func TestFromImage(t *testing.T) {
	w := &fixedSky{ra: 150, dec: 2}

	fp, err := FromImage(101, 200, w, 0.36)
	require.NoError(t, err)

	assert.Equal(t, 50.5, w.gotX)
	assert.Equal(t, 100.0, w.gotY)
	assert.True(t, fp.Valid)
	assert.Equal(t, 150.0, fp.RA)
	assert.Equal(t, 2.0, fp.Dec)
	assert.InDelta(t, 101.0/7200*0.36, fp.HalfWidth, 1e-15)
	assert.InDelta(t, 200.0/7200*0.36, fp.HalfHeight, 1e-15)
}

type failingSky struct{}

func (failingSky) PixelToSky(float64, float64) (float64, float64, error) {
	return 0, 0, errors.New("no sky")
}

func TestFromImageError(t *testing.T) {
	_, err := FromImage(10, 10, failingSky{}, 1)
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	specs := []testutil.TileSpec{
		{RA: 10, Dec: 0, Naxis1: 100, Naxis2: 80, Scale: 1},
		{RA: 10.03, Dec: 0, Naxis1: 100, Naxis2: 80, Scale: 1},
		{RA: 200, Dec: -45, Naxis1: 60, Naxis2: 60, Scale: 1},
	}
	names := []string{"t0.fits", "t1.fits", "bad.fits", "t2.fits"}
	require.NoError(t, testutil.PutTile(ctx, store, names[0], specs[0]))
	require.NoError(t, testutil.PutTile(ctx, store, names[1], specs[1]))
	require.NoError(t, store.Put(ctx, names[2], []byte("garbage")))
	require.NoError(t, testutil.PutTile(ctx, store, names[3], specs[2]))

	c, err := coordinator.New(3)
	require.NoError(t, err)

	x, stats, err := Build(ctx, c, survey.NewSource(store, c, nil), names, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Items)
	require.Equal(t, 4, x.Len())

	for i, want := range map[int]testutil.TileSpec{0: specs[0], 1: specs[1], 3: specs[2]} {
		fp := x.At(i)
		assert.True(t, fp.Valid, i)
		assert.NoError(t, x.Err(i))
		assert.InDelta(t, want.RA, fp.RA, 1e-9, i)
		assert.InDelta(t, want.Dec, fp.Dec, 1e-9, i)
		assert.InDelta(t, float64(want.Naxis1)/7200, fp.HalfWidth, 1e-12, i)
	}

	assert.False(t, x.At(2).Valid)
	assert.Error(t, x.Err(2))
	assert.Equal(t, []int{2}, x.Invalid())
}
