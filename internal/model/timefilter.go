package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFilter holds optional time bounds for search and report queries.
type TimeFilter struct {
	Since *time.Time
	Until *time.Time
}

// ParseTimeFilter parses --since/--until values relative to now.
// Returns nil if both are empty.
func ParseTimeFilter(sinceStr, untilStr string, now time.Time) (*TimeFilter, error) {
	if sinceStr == "" && untilStr == "" {
		return nil, nil
	}

	tf := &TimeFilter{}

	if sinceStr != "" {
		t, err := parseTimeArg(sinceStr, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", sinceStr, err)
		}
		tf.Since = &t
	}

	if untilStr != "" {
		t, err := parseTimeArg(untilStr, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --until value %q: %w", untilStr, err)
		}
		tf.Until = &t
	}

	if tf.Since != nil && tf.Until != nil && tf.Until.Before(*tf.Since) {
		return nil, fmt.Errorf("--until %s is before --since %s", tf.Until.Format(time.RFC3339), tf.Since.Format(time.RFC3339))
	}

	return tf, nil
}

// parseTimeArg accepts a relative duration ("30m", "2h", "1d", "1w") counted
// back from now, or an absolute timestamp.
func parseTimeArg(s string, now time.Time) (time.Time, error) {
	if d, ok := parseRelativeDuration(s); ok {
		return now.Add(-d), nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02",
	}

	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("expected relative duration (30m, 2h, 1d, 1w) or timestamp (2006-01-02, 2006-01-02T15:04, RFC3339)")
}

func parseRelativeDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, false
	}

	unit, ok := durationUnits[s[len(s)-1]]
	if !ok {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

var durationUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}
