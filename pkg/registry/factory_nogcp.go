//go:build !gcp

package registry

import (
	"context"
	"fmt"
)

func newGCSBackendFromEnv(ctx context.Context) (Backend, error) {
	return nil, fmt.Errorf("registry: gcs backend not enabled in this build (use -tags gcp)")
}
