package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{" info ", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAppliesLevel(t *testing.T) {
	if got := New("debug").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", got)
	}
	if got := New("nonsense").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %v", got)
	}
}
