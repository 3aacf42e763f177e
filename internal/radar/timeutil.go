package radar

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultStaleThreshold is how old a frame may get before it is reported stale.
const DefaultStaleThreshold = 5 * time.Minute

// ErrInvalidTimestamp is returned by ParseTimestamp.
var ErrInvalidTimestamp = errors.New("invalid time format; use RFC3339 or unix seconds")

// ParseTimestamp tries to parse either RFC3339 or Unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, ErrInvalidTimestamp
}

// IsStale reports whether ts is more than threshold whole minutes behind now.
func IsStale(ts time.Time, threshold time.Duration, now time.Time) bool {
	if ts.IsZero() {
		return true
	}
	mins := int64(now.Sub(ts) / time.Minute)
	return mins > int64(threshold/time.Minute)
}

// TimeAgo renders the distance between ts and now for status lines.
func TimeAgo(ts time.Time, now time.Time) string {
	diff := now.Sub(ts)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return "just now"
	case mins == 1:
		return "1 minute ago"
	case mins < 60:
		return fmt.Sprintf("%d minutes ago", mins)
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
