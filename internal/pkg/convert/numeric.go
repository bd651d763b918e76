// Package convert provides type conversion utilities.
package convert

import (
	"strconv"
	"strings"
)

// ParseFloat parses s leniently. Returns (0, false) on malformed input
// instead of an error; callers default to zero/unset.
func ParseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != f {
		return 0, false
	}
	return f, true
}

// ParseInt parses s leniently, accepting a trailing fraction ("3.0" -> 3).
func ParseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, ok := ParseFloat(s)
	if !ok {
		return 0, false
	}
	return int(f), true
}
