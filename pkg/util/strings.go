package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeLabel trims surrounding whitespace and collapses inner runs of spaces.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
