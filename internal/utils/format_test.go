package utils

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"milliseconds", 45 * time.Millisecond, "45ms"},
		{"seconds", 1500 * time.Millisecond, "1.5s"},
		{"exact minute", 2 * time.Minute, "2m"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"exact hour", time.Hour, "1h"},
		{"hours and minutes", time.Hour + 15*time.Minute, "1h 15m"},
		{"zero", 0, "0ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"newlines collapsed", "line one\nline two", 20, "line one line two"},
		{"tiny max length", "hello", 2, "..."},
		{"whitespace trimmed", "  padded  ", 20, "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateText(tt.text, tt.maxLen); got != tt.want {
				t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
		})
	}
}
