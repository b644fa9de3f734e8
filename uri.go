package vectable

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/hupe1980/vectable/blobstore"
	miniostore "github.com/hupe1980/vectable/blobstore/minio"
	s3store "github.com/hupe1980/vectable/blobstore/s3"
)

// openStore resolves a storage root URI.
//
//	memory://name                    process-wide in-memory store
//	file:///abs/path, ./rel, /abs    local directory
//	s3://bucket/prefix               Amazon S3 or an S3-compatible endpoint
//	minio://host:port/bucket/prefix  MinIO, ?secure=true for TLS
func openStore(ctx context.Context, uri string, o *options) (blobstore.ConditionalStore, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		if uri == "" {
			return nil, fmt.Errorf("%w: empty storage uri", ErrInvalidArgument)
		}
		return blobstore.NewLocalStore(filepath.Clean(uri)), nil
	}

	switch strings.ToLower(scheme) {
	case "memory", "mem":
		if rest == "" {
			return blobstore.NewMemoryStore(), nil
		}
		return blobstore.SharedMemoryStore(rest), nil
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("%w: file uri without path", ErrInvalidArgument)
		}
		return blobstore.NewLocalStore(filepath.Clean(rest)), nil
	case "s3", "s3a":
		return openS3(ctx, uri, rest, o)
	case "minio":
		return openMinIO(uri, o)
	default:
		return nil, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidArgument, scheme)
	}
}

func splitBucket(rest string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

func openS3(ctx context.Context, uri, rest string, o *options) (blobstore.ConditionalStore, error) {
	bucket, prefix := splitBucket(rest)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 uri without bucket: %s", ErrInvalidArgument, uri)
	}

	s3opts := []s3store.Option{s3store.WithPrefix(prefix)}
	if o.region != "" {
		s3opts = append(s3opts, s3store.WithRegion(o.region))
	}
	if o.endpoint != "" {
		s3opts = append(s3opts, s3store.WithEndpoint(o.endpoint))
	}

	cfg, err := resolveAWSConfig(ctx, o)
	if err != nil {
		return nil, err
	}
	store := s3store.NewWithConfig(cfg, bucket, s3opts...)
	if o.commitTable == "" {
		return store, nil
	}
	return s3store.NewDDBCommitStore(store, s3store.NewDDBClient(cfg), o.commitTable, uri), nil
}

func resolveAWSConfig(ctx context.Context, o *options) (aws.Config, error) {
	if o.awsConfig != nil {
		return *o.awsConfig, nil
	}
	cfg, err := s3store.LoadConfig(ctx, o.region)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func openMinIO(uri string, o *options) (blobstore.ConditionalStore, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	bucket, prefix := splitBucket(strings.TrimPrefix(u.Path, "/"))
	if u.Host == "" || bucket == "" {
		return nil, fmt.Errorf("%w: minio uri needs host and bucket: %s", ErrInvalidArgument, uri)
	}

	secure := o.minioSecure
	if v := u.Query().Get("secure"); v != "" {
		secure, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: secure=%q", ErrInvalidArgument, v)
		}
	}

	client, err := miniostore.NewClient(u.Host, secure)
	if err != nil {
		return nil, err
	}
	return miniostore.NewStore(client, bucket, prefix), nil
}
