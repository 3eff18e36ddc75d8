package notify

import (
	"fmt"
	"strconv"
	"time"
)

// BadgeCount renders the unread badge: empty for zero, "9+" above nine.
func BadgeCount(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 9:
		return "9+"
	default:
		return strconv.Itoa(unread)
	}
}

// UnreadLabel renders the list header count, e.g. "1 new" or "3 new".
func UnreadLabel(unread int) string {
	if unread <= 0 {
		return ""
	}
	return fmt.Sprintf("%d new", unread)
}

// Ago renders t relative to now for list entries.
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	default:
		return t.Format("02/01/2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
