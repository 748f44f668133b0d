package util

import "strconv"

// ParseFloat parses s as float64; ok is false when s is empty or invalid.
func ParseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
