package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Getenv retrieves the value of the environment variable named by the key.
// If the variable is not present or its value is empty, Getenv returns the fallback string.
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// GetenvInt is Getenv for integer values. Unparseable values yield the fallback.
func GetenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// GetenvBool is Getenv for boolean values. Unparseable values yield the fallback.
func GetenvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

// GetenvDuration is Getenv for time.Duration values such as "24h".
func GetenvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(Getenv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

// GetenvList splits a comma separated variable, dropping empty entries.
func GetenvList(key string, fallback []string) []string {
	raw := Getenv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
