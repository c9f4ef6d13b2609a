// Package dateutil holds the single canonical start-of-day computation used
// by both the access gate and the expiry sweep, so trial comparisons and
// milestone comparisons always agree.
package dateutil

import "time"

// StartOfDay truncates t to local midnight, keeping its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysUntil returns the number of whole calendar days from now to target,
// both normalized to start of day. Negative when target is in the past.
func DaysUntil(now, target time.Time) int {
	return int(StartOfDay(target).Sub(StartOfDay(now)).Hours() / 24)
}
