package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationToken  = regexp.MustCompile(`(\d+)([smhd])`)
	permanentWords = map[string]struct{}{
		"perm":      {},
		"permanent": {},
		"forever":   {},
	}
)

// ParseDuration reads "1d2h30m15s"-style input. Permanent keywords yield 0.
func ParseDuration(input string) (time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if _, ok := permanentWords[normalized]; ok {
		return 0, nil
	}
	matches := durationToken.FindAllStringSubmatch(normalized, -1)
	if len(matches) == 0 || durationToken.ReplaceAllString(normalized, "") != "" {
		return 0, fmt.Errorf("invalid duration %q", input)
	}
	var total time.Duration
	for _, m := range matches {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", input, err)
		}
		switch m[2] {
		case "s":
			total += time.Duration(n) * time.Second
		case "m":
			total += time.Duration(n) * time.Minute
		case "h":
			total += time.Duration(n) * time.Hour
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		}
	}
	if total < 0 {
		return 0, fmt.Errorf("invalid duration %q: overflow", input)
	}
	return total, nil
}

// FormatDuration renders d as "1d 2h 30m 15s"; zero or negative is "permanent".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "permanent"
	}
	units := []struct {
		size   int64
		suffix string
	}{{86400, "d"}, {3600, "h"}, {60, "m"}, {1, "s"}}
	parts := make([]string, 0, len(units))
	for _, u := range units {
		if n := secs / u.size; n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+u.suffix)
			secs %= u.size
		}
	}
	return strings.Join(parts, " ")
}
