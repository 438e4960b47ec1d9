package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOptionalBool parses a query value into a *bool. Empty input yields nil.
func ParseOptionalBool(s string) (*bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse '%s' as bool: %w", s, err)
	}
	return &b, nil
}

// PositiveIntOr parses s and returns fallback when it is missing, malformed or not positive.
func PositiveIntOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
