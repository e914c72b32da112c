package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CacheEntry is one cached store query result.
type CacheEntry struct {
	Key         string
	PayloadJSON string // JSON array of records
	RecordCount int
	FetchedAt   time.Time
}

// Fresh reports whether the entry is younger than ttl at now.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.FetchedAt) < ttl
}
