package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverlay is the shape of the optional KAI_CONFIG_FILE YAML document.
// It only carries knobs that are awkward to set one at a time in a process
// environment: everything spec.md §6 pins to its own KAI_* environment
// variable is deliberately absent here and always wins if set, regardless
// of what the overlay file says.
type fileOverlay struct {
	ReadChunkBytes int              `yaml:"read_chunk_bytes,omitempty"`
	RateLimit      rateLimitOverlay `yaml:"rate_limit,omitempty"`
	Backend        backendOverlay   `yaml:"backend,omitempty"`
}

// rateLimitOverlay tunes the per-IP token bucket in front of /inhale.
type rateLimitOverlay struct {
	RequestsPerSecond int `yaml:"requests_per_second,omitempty"`
	Burst             int `yaml:"burst,omitempty"`
}

// backendOverlay selects and configures a registry persistence backend.
// KAI_STATE_PATH, when set, still selects and configures the file backend;
// this lets an operator instead point at a cloud backend without a
// dedicated env var per field.
type backendOverlay struct {
	Type       string `yaml:"type,omitempty"` // "file" | "gcs" | "s3"
	GCSBucket  string `yaml:"gcs_bucket,omitempty"`
	GCSKey     string `yaml:"gcs_key,omitempty"`
	S3Bucket   string `yaml:"s3_bucket,omitempty"`
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
	S3Key      string `yaml:"s3_key,omitempty"`
}

// loadFileOverlay reads and parses the file named by KAI_CONFIG_FILE, if
// set. It returns a zero fileOverlay and no error when the variable is
// unset, so callers can apply the result unconditionally.
func loadFileOverlay() (*fileOverlay, error) {
	path := os.Getenv("KAI_CONFIG_FILE")
	if path == "" {
		return &fileOverlay{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	return &overlay, nil
}

// applyFileOverlay layers the optional KAI_CONFIG_FILE YAML document onto
// cfg. A KAI_* variable the operator actually set always wins over the
// file, even where the overlay also sets a value. A missing or unreadable
// overlay file is non-fatal: cfg is returned unchanged (with OverlayError
// recorded for the caller to log) since every field it could set already
// has a usable default from Load.
func applyFileOverlay(cfg *Config) *Config {
	overlay, err := loadFileOverlay()
	if err != nil {
		cfg.OverlayError = err
		return cfg
	}

	if overlay.ReadChunkBytes > 0 && os.Getenv("KAI_READ_CHUNK_BYTES") == "" {
		cfg.ReadChunkBytes = overlay.ReadChunkBytes
	}

	if overlay.RateLimit.RequestsPerSecond > 0 {
		cfg.RateLimitRPS = overlay.RateLimit.RequestsPerSecond
	}
	if overlay.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = overlay.RateLimit.Burst
	}

	if overlay.Backend.Type != "" && os.Getenv("KAI_REGISTRY_BACKEND") == "" {
		cfg.BackendType = overlay.Backend.Type
	}
	if overlay.Backend.GCSBucket != "" {
		cfg.BackendGCSBucket = overlay.Backend.GCSBucket
	}
	if overlay.Backend.GCSKey != "" {
		cfg.BackendGCSKey = overlay.Backend.GCSKey
	}
	if overlay.Backend.S3Bucket != "" {
		cfg.BackendS3Bucket = overlay.Backend.S3Bucket
	}
	if overlay.Backend.S3Region != "" {
		cfg.BackendS3Region = overlay.Backend.S3Region
	}
	if overlay.Backend.S3Endpoint != "" {
		cfg.BackendS3Endpoint = overlay.Backend.S3Endpoint
	}
	if overlay.Backend.S3Key != "" {
		cfg.BackendS3Key = overlay.Backend.S3Key
	}

	return cfg
}
