// Package dedup suppresses repeated identical events within a fixed time
// window. Keys are claimed exactly once per window; a claimed key expires
// exactly once, when the window elapses.
package dedup

import "context"

// Store tracks active dedup keys.
type Store interface {
	// Seen reports whether key is currently active.
	Seen(ctx context.Context, key string) (bool, error)
	// Claim inserts key and schedules its single expiry. It returns false
	// when the key was already active (lost the race).
	Claim(ctx context.Context, key string) (bool, error)
}
