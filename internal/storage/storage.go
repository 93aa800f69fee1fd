// Package storage keeps profile picture blobs on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomasdev42/crypto-portfolio/internal/config"
)

// ErrInvalidKey is returned for keys that could escape the store.
var ErrInvalidKey = errors.New("storage: invalid key")

// BlobStore stores opaque blobs by key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// New builds the blob store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Backend {
	case config.StorageDisk, "":
		return NewDiskStore(cfg.UploadDir, DiskURLPrefix)
	case config.StorageS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
