package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskURLPrefix is the path under which the server exposes disk blobs.
const DiskURLPrefix = "/images"

// DiskStore writes blobs as files in a single directory.
type DiskStore struct {
	dir       string
	urlPrefix string
}

// NewDiskStore creates dir if needed and returns a store rooted there.
func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the directory served statically under the URL prefix.
func (s *DiskStore) Dir() string { return s.dir }

// Put writes the blob, replacing any existing file with the same key.
func (s *DiskStore) Put(_ context.Context, key, _ string, body []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, key))
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// URL returns the public path of the blob.
func (s *DiskStore) URL(_ context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return s.urlPrefix + "/" + key, nil
}
