package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatConfidence(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		expected   string
	}{
		{"zero", 0, "0.0%"},
		{"prior", 0.5, "50.0%"},
		{"fraction", 0.1234, "12.3%"},
		{"full", 1, "100.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatConfidence(tt.confidence))
		})
	}
}

func TestFormatVariant(t *testing.T) {
	assert.Equal(t, "no data", FormatVariant(0, 0))
	assert.Equal(t, "75.0% (n=4)", FormatVariant(0.75, 4))
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		name     string
		age      time.Duration
		expected string
	}{
		{"negative", -time.Minute, "0m"},
		{"seconds", 30 * time.Second, "0m"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 2*time.Hour + 15*time.Minute, "2h 15m"},
		{"days", 50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAge(tt.age))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "long…", Truncate("long text", 5))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
	assert.Equal(t, "", Truncate("anything", 0))
}
