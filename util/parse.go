package util

import (
	"fmt"
	"strings"
)

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
	{"B", 1},
}

// ParseSize parses a human-readable size string (e.g. "10MB", "512KB", "2GB")
// into bytes. Returns defaultBytes if the string cannot be parsed.
func ParseSize(s string, defaultBytes int64) int64 {
	n, err := ParseSizeStrict(s)
	if err != nil {
		return defaultBytes
	}
	return n
}

// ParseSizeStrict is ParseSize without the fallback.
func ParseSizeStrict(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	var multiplier int64 = 1
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.multiplier
			s = strings.TrimSpace(s[:len(s)-len(u.suffix)])
			break
		}
	}

	var val int64
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &val, &rest); n != 1 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return val * multiplier, nil
}

// FormatSize renders a byte count using the largest unit that divides it evenly.
func FormatSize(n int64) string {
	for _, u := range sizeUnits {
		if n != 0 && n%u.multiplier == 0 {
			return fmt.Sprintf("%d%s", n/u.multiplier, u.suffix)
		}
	}
	return fmt.Sprintf("%dB", n)
}
