package store

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path"

	"github.com/spf13/afero"
)

type fsStore struct {
	fs   afero.Fs
	root *url.URL
}

// NewFS creates a store over an afero filesystem, where paths are relative to the root
// of the filesystem.
func NewFS(fs afero.Fs, root *url.URL) Store {
	return &fsStore{fs: fs, root: root}
}

func (s *fsStore) Provider() string {
	return "fs"
}

func (s *fsStore) URL(p string) string {
	u := *s.root
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (s *fsStore) Exists(_ context.Context, p string) (bool, error) {
	return afero.Exists(s.fs, s.clean(p))
}

func (s *fsStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.clean(p))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	return f, err
}

// Put writes to a temporary file before renaming it into place, so a partially written
// file is never visible at the path.
func (s *fsStore) Put(_ context.Context, p string, content []byte) error {
	var fsPath = s.clean(p)

	if err := s.fs.MkdirAll(path.Dir(fsPath), 0750); err != nil {
		return err
	}

	f, err := afero.TempFile(s.fs, path.Dir(fsPath), ".partial-"+path.Base(fsPath))
	if err != nil {
		return err
	}

	defer s.fs.Remove(f.Name()) // no-op once renamed

	_, err = io.Copy(f, bytes.NewReader(content))
	if err == nil {
		err = f.Close()
	}
	if err == nil {
		err = s.fs.Rename(f.Name(), fsPath)
	}
	return err
}

func (s *fsStore) Remove(_ context.Context, p string) error {
	err := s.fs.Remove(s.clean(p))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

func (s *fsStore) clean(p string) string {
	return path.Join("/", p)
}
