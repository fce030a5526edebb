package registry

import (
	"context"
	"fmt"
	"os"
)

// BackendType selects which persistence backend NewBackendFromEnv builds.
type BackendType string

const (
	BackendTypeFile BackendType = "file"
	BackendTypeGCS  BackendType = "gcs"
	BackendTypeS3   BackendType = "s3"
)

// NewBackendFromEnv builds a Backend from environment variables, or
// returns (nil, nil) if persistence is not configured (KAI_STATE_PATH
// unset and no cloud backend requested).
//
// Environment variables:
//   - KAI_STATE_PATH: local file path; enables the file backend.
//   - KAI_REGISTRY_BACKEND: "file" (default), "gcs", or "s3".
//   - KAI_REGISTRY_GCS_BUCKET / KAI_REGISTRY_GCS_KEY (gcs)
//   - KAI_REGISTRY_S3_BUCKET / KAI_REGISTRY_S3_REGION /
//     KAI_REGISTRY_S3_ENDPOINT / KAI_REGISTRY_S3_KEY (s3)
func NewBackendFromEnv(ctx context.Context) (Backend, error) {
	backendType := BackendType(os.Getenv("KAI_REGISTRY_BACKEND"))
	if backendType == "" {
		backendType = BackendTypeFile
	}

	switch backendType {
	case BackendTypeFile:
		path := os.Getenv("KAI_STATE_PATH")
		if path == "" {
			return nil, nil
		}
		return NewFileBackend(path), nil
	case BackendTypeGCS:
		return newGCSBackendFromEnv(ctx)
	case BackendTypeS3:
		return newS3BackendFromEnv(ctx)
	default:
		return nil, fmt.Errorf("registry: unsupported KAI_REGISTRY_BACKEND %q", backendType)
	}
}
