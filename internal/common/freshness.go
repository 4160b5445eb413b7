// Package common provides shared utilities for FolioSync
package common

import "time"

// StaleAfterIntervals is how many missed sync intervals make a cached
// snapshot stale for status reporting
const StaleAfterIntervals = 2

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
