package stampcut

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/blobstore/minio"
	"github.com/hupe1980/stampcut/blobstore/s3"
	"github.com/hupe1980/stampcut/config"
)

// Location is a parsed store address.
type Location struct {
	// Scheme is "s3", "minio" or "" for a local directory.
	Scheme string
	Bucket string
	// Prefix is the key prefix inside the bucket, or the directory for a
	// local store.
	Prefix string
}

// Remote reports whether the location is an object store.
func (l Location) Remote() bool { return l.Scheme != "" }

// ParseLocation splits "s3://bucket/prefix", "minio://bucket/prefix" or a
// local path.
func ParseLocation(s string) (Location, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Prefix: s}, nil
	}
	switch scheme {
	case "s3", "minio":
	default:
		return Location{}, fmt.Errorf("stampcut: unsupported store scheme %q", scheme)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("stampcut: missing bucket in %q", s)
	}
	return Location{Scheme: scheme, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// OpenStore opens the store at loc.
func OpenStore(ctx context.Context, loc Location, remote config.RemoteConfig) (blobstore.BlobStore, error) {
	switch loc.Scheme {
	case "s3":
		opts := []s3.Option{s3.WithPrefix(loc.Prefix)}
		if remote.Region != "" {
			opts = append(opts, s3.WithRegion(remote.Region))
		}
		if remote.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(remote.Endpoint))
		}
		return s3.New(ctx, loc.Bucket, opts...)
	case "minio":
		return minio.Dial(minio.Config{
			Endpoint:  remote.Endpoint,
			AccessKey: remote.AccessKey,
			SecretKey: remote.SecretKey,
			Region:    remote.Region,
			UseSSL:    remote.UseSSL,
		}, loc.Bucket, loc.Prefix)
	default:
		return blobstore.NewLocalStore(loc.Prefix), nil
	}
}
