package util

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmpty    = errors.New("empty value")
	ErrNotANum  = errors.New("not a number")
	ErrNegative = errors.New("negative value")
	ErrFraction = errors.New("not a whole number")
)

// ParseNonNegativeInt parses a whole, non-negative number.
// Integral decimal forms such as "12.0" are accepted.
func ParseNonNegativeInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 {
			return 0, ErrNegative
		}
		return v, nil
	}
	f, err := ParseNonNegativeFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, ErrFraction
	}
	if f > math.MaxInt32 {
		return 0, ErrNotANum
	}
	return int(f), nil
}

// ParseNonNegativeFloat parses a finite, non-negative real number.
func ParseNonNegativeFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotANum
	}
	if f < 0 {
		return 0, ErrNegative
	}
	// -0 parses fine; keep it positive
	return f + 0, nil
}

// Round rounds x half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
