// Package storage persists source documents and extracted images in Google
// Cloud Storage and hands out references: signed URLs for documents,
// application-served URLs for images.
package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// MaxSignedURLExpiration is the GCS ceiling for V4 signed URLs (7 days).
const MaxSignedURLExpiration = 604800 * time.Second

// Config holds GCS settings.
type Config struct {
	ProjectID           string
	Bucket              string
	CredentialsFile     string
	SignedURLExpiration time.Duration
}

// LoadConfigFromEnv reads the GOOGLE_CLOUD_* environment variables and
// validates them. A missing credentials file or an out-of-range expiration is
// a startup failure, not something to discover on the first upload.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		ProjectID:           os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
		Bucket:              os.Getenv("GOOGLE_CLOUD_STORAGE_BUCKET"),
		CredentialsFile:     os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		SignedURLExpiration: MaxSignedURLExpiration,
	}
	if cfg.ProjectID == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required")
	}
	if cfg.Bucket == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLOUD_STORAGE_BUCKET is required")
	}
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return Config{}, fmt.Errorf("Google credentials file not found at %s: %w", cfg.CredentialsFile, err)
		}
	}
	if v := os.Getenv("SIGNED_URL_EXPIRATION_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SIGNED_URL_EXPIRATION_SECONDS %q: %w", v, err)
		}
		cfg.SignedURLExpiration = time.Duration(seconds) * time.Second
	}
	if cfg.SignedURLExpiration <= 0 {
		return Config{}, fmt.Errorf("signed URL expiration must be greater than 0")
	}
	if cfg.SignedURLExpiration > MaxSignedURLExpiration {
		return Config{}, fmt.Errorf("signed URL expiration cannot exceed %s (7 days)", MaxSignedURLExpiration)
	}
	return cfg, nil
}
