package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when a required secret cannot be
// resolved from any provider. Callers fail fast on it before attempting
// any API call.
var ErrMissingCredential = fmt.Errorf("missing credential")

// DefaultEnvFiles is the prioritized list of .env fallback files checked
// after the process environment: the project root first, then the local
// secrets file some dev setups keep under config/.
var DefaultEnvFiles = []string{".env", "config/.env"}

// LoadEnv loads the prioritized .env files into the process environment.
// godotenv.Load never overrides variables that are already set, which
// keeps the provider order: process env first, then each file in turn,
// first match wins. A missing file is not an error.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Secret resolves key from the environment after LoadEnv has layered in
// the fallback files. A blank value is treated as missing.
func Secret(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s is not set; export it or add it to one of %v: %w", key, DefaultEnvFiles, ErrMissingCredential)
}
