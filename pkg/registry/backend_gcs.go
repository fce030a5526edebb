//go:build gcp

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSBackend persists the registry snapshot as a single object in Google
// Cloud Storage. There is no tmp+rename on object storage, so atomicity
// comes from GCS's own object replacement semantics; the prior object is
// copied to a ".bak" key on a best-effort basis before being overwritten,
// mirroring FileBackend's on-disk backup.
type GCSBackend struct {
	client *storage.Client
	bucket string
	key    string
}

// GCSBackendConfig configures a GCSBackend.
type GCSBackendConfig struct {
	Bucket string
	Key    string // object name, e.g. "krystal-gate/state.json"
}

// NewGCSBackend constructs a GCSBackend, creating a client via Application
// Default Credentials.
func NewGCSBackend(ctx context.Context, cfg GCSBackendConfig) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: gcs client init failed: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (b *GCSBackend) Load(ctx context.Context) ([]byte, error) {
	obj := b.client.Bucket(b.bucket).Object(b.key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return b.loadBackup(ctx)
		}
		return nil, fmt.Errorf("registry: gcs read failed: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *GCSBackend) loadBackup(ctx context.Context) ([]byte, error) {
	obj := b.client.Bucket(b.bucket).Object(b.key + ".bak")
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, ErrNoSnapshot
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *GCSBackend) Save(ctx context.Context, data []byte) error {
	bucket := b.client.Bucket(b.bucket)

	if prior, err := b.Load(ctx); err == nil {
		w := bucket.Object(b.key + ".bak").NewWriter(ctx)
		w.ContentType = "application/json"
		if _, werr := w.Write(prior); werr == nil {
			_ = w.Close()
		} else {
			_ = w.Close()
		}
	}

	w := bucket.Object(b.key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("registry: gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("registry: gcs close failed: %w", err)
	}
	return nil
}
