package env

import "os"

// Get reads an environment variable, returning fallback when the
// variable is unset or empty. Empty values count as unset because the
// deployment templates write empty strings for disabled settings.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
