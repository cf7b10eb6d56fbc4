// Package config holds the offline layer tunables.
package config

import "time"

type Config struct {
	// Capacity bounds the offline queue. When full, the lowest-priority
	// item is evicted to make room.
	Capacity int

	// MaxRetries is the per-item sync attempt budget before the item is
	// dropped with a terminal failure record.
	MaxRetries int

	// SyncInterval paces the background sync loop.
	SyncInterval time.Duration

	// SnapshotTTL expires cached patient/appointment snapshots so the
	// kiosk never trusts arbitrarily stale data.
	SnapshotTTL time.Duration

	// ProvisionalServiceMinutes and ProvisionalBufferMinutes feed the
	// offline wait estimate, where no live queue state is available.
	ProvisionalServiceMinutes int
	ProvisionalBufferMinutes  int
}

func DefaultConfig() Config {
	return Config{
		Capacity:                  500,
		MaxRetries:                3,
		SyncInterval:              30 * time.Second,
		SnapshotTTL:               4 * time.Hour,
		ProvisionalServiceMinutes: 15,
		ProvisionalBufferMinutes:  3,
	}
}
