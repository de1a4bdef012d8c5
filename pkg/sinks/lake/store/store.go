// Package store abstracts the object storage that holds lake data files. Stores are
// opened from a warehouse URL, whose scheme selects the backend:
//
//	file:///var/lib/pglake     local filesystem
//	mem://warehouse            in-process memory, for tests and dry runs
//	s3://bucket/prefix?region=eu-west-1
//	gs://bucket/prefix
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/schema"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Store holds immutable objects by path, relative to the warehouse root.
type Store interface {
	// Provider returns the name of the storage backend (eg. "s3", "gcs", "fs")
	Provider() string

	// URL returns the fully qualified location of the path, for display
	URL(path string) string

	// Exists reports whether an object is present at the path
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the content at the path exactly as it was written, or ErrNotFound.
	// Stores never decompress on the caller's behalf.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put durably writes content to the path. Content is either entirely written, or
	// not visible at all. Objects carry no Content-Encoding, as data files are decoded by
	// the codec recorded against their snapshot.
	Put(ctx context.Context, path string, content []byte) error

	Remove(ctx context.Context, path string) error
}

// Open creates a store from the warehouse URL.
func Open(ctx context.Context, warehouse string) (Store, error) {
	ep, err := url.Parse(warehouse)
	if err != nil {
		return nil, fmt.Errorf("invalid warehouse URL %q: %w", warehouse, err)
	}

	switch ep.Scheme {
	case "file":
		if ep.Path == "" {
			return nil, fmt.Errorf("file warehouse requires an absolute path, eg. file:///var/lib/pglake")
		}

		return NewFS(afero.NewBasePathFs(afero.NewOsFs(), ep.Path), ep), nil
	case "mem":
		return NewFS(afero.NewMemMapFs(), ep), nil
	case "s3":
		return NewS3(ep)
	case "gs":
		return NewGCS(ctx, ep)
	}

	return nil, fmt.Errorf("unsupported warehouse scheme %q, expected file, mem, s3 or gs", ep.Scheme)
}

func parseStoreArgs(ep *url.URL, args interface{}) error {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)

	if q, err := url.ParseQuery(ep.RawQuery); err != nil {
		return err
	} else if err = decoder.Decode(args, q); err != nil {
		return fmt.Errorf("parsing store URL arguments: %s", err)
	}
	return nil
}

// bucketPrefix splits an object store URL into bucket and key prefix, where the prefix is
// either empty or ends in a slash.
func bucketPrefix(ep *url.URL) (string, string, error) {
	if ep.Host == "" {
		return "", "", fmt.Errorf("warehouse URL %s has no bucket", ep.Redacted())
	}

	prefix := ep.Path
	if len(prefix) > 0 && prefix[0] == '/' {
		prefix = prefix[1:]
	}
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix = prefix + "/"
	}

	return ep.Host, prefix, nil
}
