package storage

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomasdev42/crypto-portfolio/internal/config"
)

func TestDiskStoreLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store, err := NewDiskStore(dir, DiskURLPrefix)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "abc123", "image/png", []byte("png-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "abc123"))
	if err != nil || string(got) != "png-bytes" {
		t.Fatalf("file content %q err %v", got, err)
	}

	u, err := store.URL(ctx, "abc123")
	if err != nil || u != "/images/abc123" {
		t.Fatalf("url %q err %v", u, err)
	}

	if err := store.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("deleting a missing blob should succeed: %v", err)
	}
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), DiskURLPrefix)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "a/b", `a\b`, ".."} {
		if err := store.Put(context.Background(), key, "", nil); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q accepted: %v", key, err)
		}
	}
}

func TestS3StorePresignedURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Backend:     config.StorageS3,
		S3Bucket:    "avatars",
		S3Region:    "eu-west-1",
		S3Endpoint:  "http://localhost:9000",
		S3AccessKey: "minio",
		S3SecretKey: "minio-secret",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	raw, err := store.URL(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "localhost:9000" || u.Path != "/avatars/abc123" {
		t.Fatalf("unexpected url %s", raw)
	}
	if !strings.Contains(u.RawQuery, "X-Amz-Signature=") {
		t.Fatalf("url is not presigned: %s", raw)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Backend: config.StorageDisk, UploadDir: t.TempDir()})
	if err != nil {
		t.Fatalf("disk: %v", err)
	}
	if _, ok := store.(*DiskStore); !ok {
		t.Fatalf("expected *DiskStore, got %T", store)
	}
	if _, err := New(context.Background(), config.StorageConfig{Backend: "ftp"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
