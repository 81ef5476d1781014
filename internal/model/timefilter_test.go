package model

import (
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// --- parseRelativeDuration ---

func TestParseRelativeDuration_WhenGivenKnownUnits_ShouldReturnCorrectDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30m": 30 * time.Minute,
		"2h":  2 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"2w":  2 * 7 * 24 * time.Hour,
	}
	for in, want := range cases {
		d, ok := parseRelativeDuration(in)
		if !ok {
			t.Errorf("expected ok=true for %q", in)
			continue
		}
		if d != want {
			t.Errorf("%q: expected %v, got %v", in, want, d)
		}
	}
}

func TestParseRelativeDuration_WhenGivenInvalidInput_ShouldReturnFalse(t *testing.T) {
	for _, in := range []string{"h", "", "0h", "-3h", "5x", "abch"} {
		if _, ok := parseRelativeDuration(in); ok {
			t.Errorf("expected ok=false for %q", in)
		}
	}
}

// --- parseTimeArg ---

func TestParseTimeArg_WhenGivenRelativeDuration_ShouldCountBackFromNow(t *testing.T) {
	result, err := parseTimeArg("2h", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := fixedNow.Add(-2 * time.Hour); !result.Equal(want) {
		t.Errorf("expected %v, got %v", want, result)
	}
}

func TestParseTimeArg_WhenGivenAbsoluteFormats_ShouldParseCorrectly(t *testing.T) {
	cases := map[string]time.Time{
		"2024-06-15":                time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		"2024-06-15T14:30":          time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC),
		"2024-06-15T14:30:00Z":      time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC),
		"2024-06-15T14:30:00+05:00": time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := parseTimeArg(in, fixedNow)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestParseTimeArg_WhenGivenGarbage_ShouldReturnError(t *testing.T) {
	for _, in := range []string{"garbage", "2024-06"} {
		if _, err := parseTimeArg(in, fixedNow); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

// --- ParseTimeFilter ---

func TestParseTimeFilter_WhenBothEmpty_ShouldReturnNil(t *testing.T) {
	tf, err := ParseTimeFilter("", "", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf != nil {
		t.Error("expected nil TimeFilter when both args are empty")
	}
}

func TestParseTimeFilter_WhenOnlyUntilProvided_ShouldLeaveSinceNil(t *testing.T) {
	tf, err := ParseTimeFilter("", "2024-12-31", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf.Since != nil {
		t.Error("expected Since to be nil")
	}
	expected := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	if tf.Until == nil || !tf.Until.Equal(expected) {
		t.Errorf("expected Until=%v, got %v", expected, tf.Until)
	}
}

func TestParseTimeFilter_WhenSinceIsRelativeAndUntilIsAbsolute_ShouldParseBoth(t *testing.T) {
	tf, err := ParseTimeFilter("2h", "2025-12-31", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tf.Since == nil || tf.Until == nil {
		t.Fatal("expected both Since and Until to be set")
	}
	if want := fixedNow.Add(-2 * time.Hour); !tf.Since.Equal(want) {
		t.Errorf("expected Since=%v, got %v", want, *tf.Since)
	}
}

func TestParseTimeFilter_WhenInvalid_ShouldNameTheFlag(t *testing.T) {
	_, err := ParseTimeFilter("not-a-time", "", fixedNow)
	if err == nil || !strings.Contains(err.Error(), "--since") {
		t.Errorf("expected error mentioning --since, got %v", err)
	}
	_, err = ParseTimeFilter("", "not-a-time", fixedNow)
	if err == nil || !strings.Contains(err.Error(), "--until") {
		t.Errorf("expected error mentioning --until, got %v", err)
	}
}

func TestParseTimeFilter_WhenUntilBeforeSince_ShouldReturnError(t *testing.T) {
	if _, err := ParseTimeFilter("2025-01-02", "2025-01-01", fixedNow); err == nil {
		t.Error("expected error for inverted bounds")
	}
}
