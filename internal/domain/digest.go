package domain

import "time"

// Digest is a scope's daily roster post.
type Digest struct {
	ScopeID    int64
	AtMinutes  int        // minutes from midnight UTC (0..1439)
	NextAt     time.Time  // UTC
	LastSentAt *time.Time // UTC, nullable
}

// NextDigest returns the first instant strictly after nowUTC whose UTC wall
// clock equals atMinutes.
func NextDigest(nowUTC time.Time, atMinutes int) time.Time {
	nowUTC = nowUTC.UTC()
	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	next := midnight.Add(time.Duration(atMinutes) * time.Minute)
	if !next.After(nowUTC) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
