//go:build !aws

package registry

import (
	"context"
	"fmt"
)

func newS3BackendFromEnv(ctx context.Context) (Backend, error) {
	return nil, fmt.Errorf("registry: s3 backend not enabled in this build (use -tags aws)")
}
