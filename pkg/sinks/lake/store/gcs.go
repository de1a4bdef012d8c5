package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
)

type gcsStore struct {
	bucket string
	prefix string
	client *storage.Client
}

// NewGCS creates a store using application default credentials.
func NewGCS(ctx context.Context, ep *url.URL) (Store, error) {
	if err := parseStoreArgs(ep, &struct{}{}); err != nil {
		return nil, err
	}

	bucket, prefix, err := bucketPrefix(ep)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("constructing GCS client: %w", err)
	}

	return &gcsStore{bucket: bucket, prefix: prefix, client: client}, nil
}

func (s *gcsStore) Provider() string {
	return "gcs"
}

func (s *gcsStore) URL(path string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.key(path))
}

func (s *gcsStore) Exists(ctx context.Context, path string) (exists bool, err error) {
	_, err = s.client.Bucket(s.bucket).Object(s.key(path)).Attrs(ctx)
	if err == nil {
		exists = true
	} else if errors.Is(err, storage.ErrObjectNotExist) {
		err = nil
	}
	return exists, err
}

// Get reads compressed objects as stored. Without ReadCompressed the client would
// transcode objects carrying a gzip Content-Encoding.
func (s *gcsStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.key(path)).ReadCompressed(true).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}

	return reader, err
}

// Put uploads with a writer whose Close commits the object. Cancelling the context
// before Close abandons the upload, leaving nothing at the path.
func (s *gcsStore) Put(ctx context.Context, path string, content []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wc = s.client.Bucket(s.bucket).Object(s.key(path)).NewWriter(ctx)

	if _, err := wc.Write(content); err != nil {
		return err
	}

	return wc.Close()
}

func (s *gcsStore) Remove(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(s.key(path)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}

	return err
}

func (s *gcsStore) key(path string) string {
	return s.prefix + path
}
