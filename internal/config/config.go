// Package config loads the gate's runtime configuration from environment
// variables, with an optional KAI_CONFIG_FILE YAML overlay for the values
// that are awkward to set one-by-one in a process environment.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration: the required KAI_* environment
// variables of §6, plus the non-required knobs the optional
// KAI_CONFIG_FILE YAML overlay (§B.3) may layer on top of their defaults.
type Config struct {
	Port     string
	LogLevel string

	BaseOrigin           string
	StatePath            string
	RegistryKeep         int
	MaxConcurrentInhales int
	ReadChunkBytes       int
	MaxInlineStateURLs   int
	MaxInlineURLs        int

	// RateLimitRPS and RateLimitBurst size the per-IP token bucket in
	// front of /inhale. They have no dedicated KAI_* variable; only the
	// YAML overlay (or the defaults here) set them.
	RateLimitRPS   int
	RateLimitBurst int

	// BackendType selects the registry persistence backend: "file"
	// (default, via StatePath), "gcs", or "s3". Overridable by
	// KAI_REGISTRY_BACKEND, which always wins over the overlay file.
	BackendType       string
	BackendGCSBucket  string
	BackendGCSKey     string
	BackendS3Bucket   string
	BackendS3Region   string
	BackendS3Endpoint string
	BackendS3Key      string

	// OverlayError records a KAI_CONFIG_FILE read/parse failure. Load
	// never fails outright on a bad overlay; the caller decides whether
	// to log it and continue or treat it as fatal.
	OverlayError error
}

// Load loads configuration from environment variables, applying the
// defaults from §6 wherever a variable is unset.
func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		BaseOrigin:           getEnv("KAI_BASE_ORIGIN", "https://example.invalid"),
		StatePath:            os.Getenv("KAI_STATE_PATH"),
		RegistryKeep:         getEnvInt("KAI_REGISTRY_KEEP", 0),
		MaxConcurrentInhales: getEnvInt("KAI_MAX_CONCURRENT_INHALES", 32),
		ReadChunkBytes:       getEnvInt("KAI_READ_CHUNK_BYTES", 1048576),
		MaxInlineStateURLs:   getEnvInt("KAI_MAX_INLINE_STATE_URLS", 10000),
		MaxInlineURLs:        getEnvInt("KAI_MAX_INLINE_URLS", 20000),

		RateLimitRPS:   10,
		RateLimitBurst: 20,
		BackendType:    getEnv("KAI_REGISTRY_BACKEND", "file"),
	}
	return applyFileOverlay(cfg)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
