// Package models defines the queue manager's owned types. QueueEntry never
// leaves the queue package boundary except as a read-only snapshot view.
package models

import (
	"time"

	checkinmodels "medkiosk/internal/checkin/models"
	id "medkiosk/pkg/domain"
)

// Entry wraps an admitted record with its scheduling state. Priority is
// recomputed on every re-rank, never treated as a stored constant.
type Entry struct {
	Record                  *checkinmodels.CheckInRecord
	Priority                float64
	EstimatedServiceMinutes int
	InsertedAt              time.Time
}

// Position is the outcome of an admission.
type Position struct {
	Position             int `json:"position"`
	EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
}

// EntryView is the read-only projection exposed in snapshots.
type EntryView struct {
	PatientID            id.PatientID           `json:"patient_id"`
	PatientName          string                 `json:"patient_name,omitempty"`
	Category             checkinmodels.Category `json:"category"`
	Position             int                    `json:"position"`
	Priority             float64                `json:"priority"`
	EstimatedWaitMinutes int                    `json:"estimated_wait_minutes"`
	WaitingSince         time.Time              `json:"waiting_since"`
}

// Snapshot is a consistent view of the whole queue.
type Snapshot struct {
	Depth              int                            `json:"depth"`
	Entries            []EntryView                    `json:"entries"`
	CategoryCounts     map[checkinmodels.Category]int `json:"category_counts"`
	AverageWaitMinutes int                            `json:"average_wait_minutes"`
	TakenAt            time.Time                      `json:"taken_at"`
}
