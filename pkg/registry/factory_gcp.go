//go:build gcp

package registry

import (
	"context"
	"fmt"
	"os"
)

func newGCSBackendFromEnv(ctx context.Context) (Backend, error) {
	bucket := os.Getenv("KAI_REGISTRY_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("KAI_REGISTRY_GCS_BUCKET is required for the gcs registry backend")
	}
	key := os.Getenv("KAI_REGISTRY_GCS_KEY")
	if key == "" {
		key = "krystal-gate/state.json"
	}
	return NewGCSBackend(ctx, GCSBackendConfig{Bucket: bucket, Key: key})
}
