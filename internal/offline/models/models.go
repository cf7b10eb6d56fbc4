// Package models defines the offline queue item and sync reporting types.
package models

import (
	"encoding/json"
	"time"

	id "medkiosk/pkg/domain"
)

// ItemType tags what a queued payload represents so the sync loop can route
// it to the right handler.
type ItemType string

const (
	ItemCheckIn      ItemType = "checkin"
	ItemAnalytics    ItemType = "analytics"
	ItemNotification ItemType = "notification"
	ItemProgress     ItemType = "progress"
)

// Priority orders sync processing and eviction. Critical syncs first and is
// evicted last.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank maps a priority to its sort order, lower syncs first. Unknown
// priorities rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// Item is one unit of deferred work. The payload is opaque to the queue;
// only the registered handler for the item's type interprets it.
type Item struct {
	ID         id.ItemID       `json:"id"`
	Type       ItemType        `json:"type"`
	Priority   Priority        `json:"priority"`
	Payload    json.RawMessage `json:"payload"`
	Retries    int             `json:"retries"`
	MaxRetries int             `json:"max_retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// SyncReport summarizes one sync cycle.
type SyncReport struct {
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	Dropped   int           `json:"dropped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// DropReason distinguishes why an item left the queue without syncing.
type DropReason string

const (
	DropRetriesExhausted DropReason = "retries_exhausted"
	DropEvicted          DropReason = "evicted"
)

// SyncFailure is the durable audit record written when an item is dropped.
type SyncFailure struct {
	ItemID   id.ItemID       `json:"item_id"`
	Type     ItemType        `json:"type"`
	Priority Priority        `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
	Retries  int             `json:"retries"`
	Reason   DropReason      `json:"reason"`
	FailedAt time.Time       `json:"failed_at"`
}
