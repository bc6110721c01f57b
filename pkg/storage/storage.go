package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Provider represents a storage provider type
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderLocal Provider = "local"
)

// ErrNotFound is returned when the requested object does not exist
var ErrNotFound = errors.New("object not found")

// Storage is read-only access to artifacts the dashboard loads at startup
type Storage interface {
	// Download opens the object for reading. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// Location is a parsed artifact path
type Location struct {
	Provider Provider
	Bucket   string
	Key      string
}

// String renders the location back into URI form
func (l Location) String() string {
	if l.Provider == ProviderS3 {
		return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
	}
	return l.Key
}

// ParseLocation splits an artifact path into provider, bucket and key.
// "s3://bucket/a/b.csv" addresses S3; anything else, including "file://" URIs, is local.
func ParseLocation(uri string) (Location, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid s3 location %q: want s3://bucket/key", uri)
		}
		return Location{Provider: ProviderS3, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(uri, "file://"):
		uri = strings.TrimPrefix(uri, "file://")
	}
	if uri == "" {
		return Location{}, errors.New("empty location")
	}
	return Location{Provider: ProviderLocal, Key: uri}, nil
}

// ForLocation returns the Storage able to serve loc
func ForLocation(ctx context.Context, loc Location, cfg S3Config) (Storage, error) {
	switch loc.Provider {
	case ProviderS3:
		cfg.Bucket = loc.Bucket
		return NewS3Storage(ctx, cfg)
	case ProviderLocal:
		return NewLocalStorage(""), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", loc.Provider)
	}
}
