// Package minio provides a BlobStore on MinIO and other S3-compatible
// services (Ceph, SeaweedFS, Garage) through the MinIO Go client.
//
//	store, err := minioblob.Dial(minioblob.Config{
//	    Endpoint:  "archive.example.org:9000",
//	    AccessKey: key,
//	    SecretKey: secret,
//	    UseSSL:    true,
//	}, "survey", "dr3/")
//
// Pixel windows are read with ranged GetObject calls; stamps are written
// with PutObject.
package minio
