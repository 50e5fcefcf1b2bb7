package domain

import (
	"math"
	"time"
)

// DateLayout is the calendar date format used by the dashboard.
const DateLayout = "2006-01-02"

// TimestampLayout renders created_at/updated_at in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock returns the current time.
type Clock func() time.Time

// Timestamp formats t as a record timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
// A calendar date is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// DaysUntil returns the whole days from now until t, rounded up.
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// StatusCheck is the outcome of the derived-status rule for one record.
type StatusCheck struct {
	AssetNumber     string `json:"asset_number"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	NextMaintenance string `json:"next_maintenance,omitempty"`
	DaysUntilDue    *int   `json:"days_until_due,omitempty"`
	NeedsUpdate     bool   `json:"needs_update"`
}

// CheckStatus applies the derived-status rule: an Operational record whose
// next maintenance falls within window days is due. Records without a
// parseable next_maintenance are never flagged.
func CheckStatus(e Equipment, now time.Time, window int) StatusCheck {
	sc := StatusCheck{
		AssetNumber:     e.AssetNumber,
		Name:            e.Name,
		Status:          e.Status,
		NextMaintenance: e.NextMaintenance,
	}
	if e.NextMaintenance == "" {
		return sc
	}
	next, ok := ParseDate(e.NextMaintenance)
	if !ok {
		return sc
	}
	days := DaysUntil(next, now)
	sc.DaysUntilDue = &days
	sc.NeedsUpdate = e.Status == StatusOperational && days <= window
	return sc
}
