package chore

import (
	"fmt"
	"time"
)

// FormatLastDone renders how long ago a completion happened, e.g.
// "3 hours ago" or "2 days and 4 hours ago".
func FormatLastDone(at, now time.Time) string {
	diff := now.Sub(at)

	hours := int(diff / time.Hour)
	days := hours / 24

	switch {
	case diff < time.Hour:
		return "less than one hour ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 7:
		if rest := hours % 24; rest != 0 {
			return fmt.Sprintf("%s and %s ago", plural(days, "day"), plural(rest, "hour"))
		}
		return plural(days, "day") + " ago"
	default:
		return plural(days, "day") + " ago"
	}
}
