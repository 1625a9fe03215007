// Package stampcut cuts square postage stamps out of a tiled sky survey for
// every target of a catalog.
//
// A run has three phases. The footprint phase reads the header of every
// survey tile in parallel and records the sky rectangle it covers. The match
// phase tests the four corners of each target's stamp against the
// footprints and keeps up to eight images per target. The stitch phase
// builds each stamp in parallel by copying the overlapping pixel window of
// every matched image onto a zeroed canvas, and writes it as a FITS file
// carrying the WCS of the first contributing image.
//
// # Quick Start
//
//	cfg := config.Defaults()
//	cfg.Catalog = "targets.txt"
//	cfg.RAColumn, cfg.DecColumn = 2, 3
//	cfg.Resolution = 0.2
//	cfg.StampSize = 20
//	cfg.Survey = "s3://survey-bucket/dr1"
//	cfg.Images = "tiles/*.fits.fz"
//	cfg.Output = "./stamps"
//
//	p, err := stampcut.New(&cfg, stampcut.WithLogLevel(slog.LevelInfo))
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx)
//
// # Stores
//
// Survey and output locations are a directory, "s3://bucket/prefix" or
// "minio://bucket/prefix". Remote survey reads go through a retrying,
// optionally throttled store behind a sharded LRU block cache. A local
// output directory is locked for the duration of a run.
//
// # Outputs
//
// Every target gets one log row (target, images, status) in the log and
// report files of the output store. Stamps whose center is blank or that
// no image covers are removed again. Status codes are:
//
//	0  stamp written
//	1  center blank
//	2  not in the survey field
//	3  failed to read an image
//
// Log entries may also be streamed to a resultlog.Sink such as a DynamoDB
// table, which allows an interrupted run to be resumed.
package stampcut
