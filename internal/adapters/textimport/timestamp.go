package textimport

import (
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	// Length of "2006-01-02 15:04:05.000"; anything past milliseconds is dropped.
	maxTimestampLen = 23
)

// parseTimestamp normalizes the date separators, truncates to millisecond
// precision and parses the result in loc.
func parseTimestamp(text string, loc *time.Location) (time.Time, error) {
	text = strings.ReplaceAll(text, "/", "-")
	if len(text) > maxTimestampLen {
		text = text[:maxTimestampLen]
	}
	// time.Parse accepts a fraction after the seconds but not a bare '.'.
	text = strings.TrimSuffix(text, ".")
	return time.ParseInLocation(timestampLayout, text, loc)
}
