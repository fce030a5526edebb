//go:build aws

package registry

import (
	"context"
	"fmt"
	"os"
)

func newS3BackendFromEnv(ctx context.Context) (Backend, error) {
	bucket := os.Getenv("KAI_REGISTRY_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("KAI_REGISTRY_S3_BUCKET is required for the s3 registry backend")
	}
	region := os.Getenv("KAI_REGISTRY_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	key := os.Getenv("KAI_REGISTRY_S3_KEY")
	if key == "" {
		key = "krystal-gate/state.json"
	}

	return NewS3Backend(ctx, S3BackendConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("KAI_REGISTRY_S3_ENDPOINT"),
		Key:      key,
	})
}
