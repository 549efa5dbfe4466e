package config

import (
	"os"
	"strconv"
)

// Get returns the first non-empty environment variable from the provided keys.
func Get(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// GetInt returns the first of the provided keys that parses as an integer,
// falling back to def when none do.
func GetInt(def int, keys ...string) int {
	raw := Get(keys...)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
