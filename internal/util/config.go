package util

import (
	"fmt"
	"strconv"
	"strings"
)

// isUnset reports whether a config value is one of the "no value" sentinels
// used in control.yaml.
func isUnset(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", "null", "all", "~":
		return true
	}
	return false
}

// OptionalString returns raw, or "" when raw is a sentinel such as "None"
func OptionalString(raw string) string {
	if isUnset(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}

// ParseOptionalInt parses an integer option that may be a sentinel.
// Returns (value, true) when set and (0, false) when unset.
func ParseOptionalInt(raw string) (int, bool, error) {
	if isUnset(raw) {
		return 0, false, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not an integer", ErrInvalidConfig, raw)
	}
	return v, true, nil
}

// SliceBounds resolves [start:end) against a list length, clamping to the
// list and treating an unset end as "to the end".
func SliceBounds(start int, end int, endSet bool, length int) (int, int, error) {
	if start < 0 {
		return 0, 0, fmt.Errorf("%w: start_index %d is negative", ErrInvalidConfig, start)
	}
	if !endSet || end > length {
		end = length
	}
	if end < 0 {
		return 0, 0, fmt.Errorf("%w: end_index %d is negative", ErrInvalidConfig, end)
	}
	if start > end {
		start = end
	}
	return start, end, nil
}
