// config.go: Configuration value parsing and path utilities
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const defaultFileMode os.FileMode = 0644

// ParseSize converts byte-count strings like "57", "1k", "1m" to bytes.
// The suffix is a single case-insensitive k (x1024) or m (x1024*1024).
// Signs, spaces, decimals and any other suffix are rejected with a *ConfigError.
func ParseSize(s string) (int64, error) {
	n, err := parseSize(s)
	if err != nil {
		return 0, configErr("size", s, err)
	}
	return n, nil
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty size string")
	}

	var multiplier int64 = 1
	digits := s
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1024
		digits = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1024 * 1024
		digits = s[:len(s)-1]
	}

	if digits == "" {
		return 0, fmt.Errorf("missing number in %q", s)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("invalid size %q (want digits with optional k or m suffix)", s)
		}
	}

	val, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number in %q: %w", s, err)
	}
	if val > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return val * multiplier, nil
}

// ParseInterval converts an "HH:MM:SS" period to a duration.
// Each field is exactly two digits within its clock range and the
// period must be positive.
func ParseInterval(s string) (time.Duration, error) {
	d, err := parseInterval(s)
	if err != nil {
		return 0, configErr("interval", s, err)
	}
	return d, nil
}

func parseInterval(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("interval %q is not HH:MM:SS", s)
	}

	limits := [3]int{23, 59, 59}
	var fields [3]int
	for i, p := range parts {
		if len(p) != 2 || p[0] < '0' || p[0] > '9' || p[1] < '0' || p[1] > '9' {
			return 0, fmt.Errorf("interval %q is not HH:MM:SS", s)
		}
		v := int(p[0]-'0')*10 + int(p[1]-'0')
		if v > limits[i] {
			return 0, fmt.Errorf("interval field %q out of range in %q", p, s)
		}
		fields[i] = v
	}

	d := time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second
	if d <= 0 {
		return 0, fmt.Errorf("interval %q must be positive", s)
	}
	return d, nil
}

// ParseDuration converts duration strings like "7d", "24h" to time.Duration
// Supports Go durations plus d, w and y suffixes
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	s = strings.ToLower(s)

	var multiplier time.Duration
	var numStr string

	switch {
	case strings.HasSuffix(s, "d"):
		multiplier = 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "w"):
		multiplier = 7 * 24 * time.Hour
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "y"):
		multiplier = 365 * 24 * time.Hour
		numStr = s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q: %v", s, err)
	}
	if val > math.MaxInt64/int64(multiplier) || val < math.MinInt64/int64(multiplier) {
		return 0, fmt.Errorf("duration %q too large", s)
	}

	return time.Duration(val) * multiplier, nil
}

// SanitizeFilename removes or replaces invalid characters for cross-platform compatibility
func SanitizeFilename(filename string) string {
	if runtime.GOOS == "windows" {
		// Windows invalid characters: < > : " | ? * and control characters
		var sanitized strings.Builder
		for _, r := range filename {
			switch {
			case r < 32, strings.ContainsRune(`<>:"|?*`, r):
				sanitized.WriteRune('_')
			default:
				sanitized.WriteRune(r)
			}
		}
		return sanitized.String()
	}

	return strings.ReplaceAll(filename, "\x00", "_")
}

// ValidatePathLength checks if the path length is within OS limits
func ValidatePathLength(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %v", err)
	}

	pathLen := len(absPath)

	switch runtime.GOOS {
	case "windows":
		if pathLen > 260 {
			return fmt.Errorf("path too long for Windows: %d characters (limit: 260)", pathLen)
		}
	default:
		if pathLen > 4096 {
			return fmt.Errorf("path too long: %d characters (limit: 4096)", pathLen)
		}
	}

	return nil
}

// cleanPath validates the logical path and sanitizes its base name.
func cleanPath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if err := ValidatePathLength(path); err != nil {
		return "", err
	}
	dir, base := filepath.Split(path)
	return dir + SanitizeFilename(base), nil
}
