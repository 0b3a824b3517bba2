package docling

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds converter endpoints and the per-job temp directory.
type Config struct {
	// APIURL is the JSON endpoint used for URL-mode conversion.
	APIURL string
	// FileAPIURL is the multipart endpoint used for file-mode conversion.
	FileAPIURL string
	Timeout    time.Duration
	TempDir    string
}

// LoadConfigFromEnv reads the DOCLING_* environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		APIURL:     getEnv("DOCLING_API_URL", "http://localhost:5001/v1alpha/convert/source"),
		FileAPIURL: getEnv("DOCLING_FILE_API_URL", "http://localhost:5001/v1alpha/convert/file"),
		Timeout:    5 * time.Minute,
		TempDir:    getEnv("DOCLING_TEMP_DIR", os.TempDir()),
	}
	if v := os.Getenv("DOCLING_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid DOCLING_TIMEOUT_SECONDS %q", v)
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
