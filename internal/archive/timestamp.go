package archive

import (
	"fmt"
	"time"
)

// LogTimeLayout is the human-readable timestamp written to monthly logs.
// It carries minute precision only; sub-minute detail exists solely in
// snapshot and backup JSON, which use RFC 3339.
const LogTimeLayout = "January 02 2006 at 15:04"

// timestampLayouts lists accepted input forms in trial order. Monthly logs
// use LogTimeLayout; snapshots and JSON backups use RFC 3339 with optional
// fractional seconds.
var timestampLayouts = []string{
	LogTimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// FormatLogTime renders a timestamp in the monthly-log form, truncated to
// the minute.
func FormatLogTime(t time.Time) string {
	return t.Format(LogTimeLayout)
}

// ParseTimestamp accepts both archive timestamp forms. Callers must not
// assume a single format: the same category can carry both across
// historical sources.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// TruncateMinute drops seconds and sub-second components. Used for the
// dedup grouping key and for minute-level activity matching.
func TruncateMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// HasSubMinute reports whether t carries second or sub-second precision.
// Records reconstructed from minute-precision logs never do; records from
// normal operation almost always do.
func HasSubMinute(t time.Time) bool {
	return t.Second() != 0 || t.Nanosecond() != 0
}
