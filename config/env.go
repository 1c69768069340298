package config

import "os"

// GetEnv returns the value of an environment variable, or the empty string
// when unset. Defaults are the caller's responsibility so that missing
// configuration is visible at the call site.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvOrDefault returns the value of an environment variable, falling back
// to the provided default when unset or empty.
func GetEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
