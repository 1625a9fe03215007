// Package testutil provides testing utilities for stampcut.
//
// This package is intended for use in tests and benchmarks only.
// It builds synthetic survey tiles with a gnomonic (TAN) WCS and
// reproducible random target lists.
//
// # Synthetic Tiles
//
//	spec := testutil.TileSpec{RA: 150, Dec: 2, Naxis1: 200, Naxis2: 200, Scale: 0.5}
//	data, err := testutil.TileBytes(spec)
//	err = testutil.PutTile(ctx, store, "tiles/t0.fits", spec)
//
// # Random Targets
//
//	rng := testutil.NewRNG(seed)
//	ra, dec := rng.SkyPoint(spec.RA, spec.Dec, radiusDeg)
package testutil
