package monitor

import (
	"fmt"
	"time"
)

// FormatConfidence formats a confidence in [0,1] as a percentage.
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.1f%%", confidence*100)
}

// FormatVariant formats a variant's success rate and observation count.
func FormatVariant(rate float64, observations int) string {
	if observations == 0 {
		return "no data"
	}
	return fmt.Sprintf("%s (n=%d)", FormatConfidence(rate), observations)
}

// FormatAge formats a duration as "Xd Yh", "Xh Ym" or "Xm".
func FormatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Truncate shortens s to at most width runes, ending in "…" when cut.
func Truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
