// Package s3 provides an S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "survey-tiles",
//	    s3.WithPrefix("dr3/r/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Pixel windows are fetched with ranged GetObject requests, so only the rows
// a stamp needs are transferred. Stamps are written with PutObject, or with
// the multipart uploader when streamed through Create.
package s3
