package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/fits"
)

func TestSkyPointWithinRadius(t *testing.T) {
	rng := NewRNG(4711)

	for i := 0; i < 100; i++ {
		ra, dec := rng.SkyPoint(10, 0, 0.5)
		assert.InDelta(t, 10, ra, 0.5)
		assert.InDelta(t, 0, dec, 0.5)
	}
}

func TestResetRepeatsSequence(t *testing.T) {
	rng := NewRNG(7)
	a := rng.Float64()
	rng.Reset()
	assert.Equal(t, a, rng.Float64())
}

func TestTileCenterMapsToReference(t *testing.T) {
	spec := TileSpec{RA: 150, Dec: 2, Naxis1: 40, Naxis2: 30, Scale: 1}

	data, err := TileBytes(spec)
	require.NoError(t, err)

	img, err := fits.Decode(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Naxis1)
	assert.Equal(t, 30, img.Naxis2)
	assert.Equal(t, float32(1), img.At(5, 5))

	ra, dec, err := spec.WCS().PixelToSky(20, 15)
	require.NoError(t, err)
	assert.InDelta(t, 150, ra, 1e-9)
	assert.InDelta(t, 2, dec, 1e-9)
}
