// Package ports defines shared interfaces for the offline module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	"medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
)

// ItemStore is the durable offline work queue.
type ItemStore interface {
	// Put persists a new item.
	Put(ctx context.Context, item *models.Item) error

	// Items returns all pending items ordered by priority (critical first)
	// then enqueue time (oldest first).
	Items(ctx context.Context) ([]*models.Item, error)

	// Update persists retry-count changes for an existing item.
	Update(ctx context.Context, item *models.Item) error

	// Remove deletes an item. Removing an absent item is not an error.
	Remove(ctx context.Context, itemID id.ItemID) error

	// Len reports the number of pending items.
	Len(ctx context.Context) (int, error)

	// EvictLowest removes and returns the lowest-priority, most recently
	// enqueued item. Returns sentinel.ErrNotFound when the queue is empty.
	EvictLowest(ctx context.Context) (*models.Item, error)
}

// SnapshotCache holds the locally cached patient/appointment snapshots that
// offline check-in validates against. Entries expire on TTL; a miss is
// sentinel.ErrNotFound.
type SnapshotCache interface {
	PutPatient(ctx context.Context, patient *clinic.Patient) error
	GetPatient(ctx context.Context, patientID id.PatientID) (*clinic.Patient, error)

	// FindPatients matches cached patients against attribute criteria.
	FindPatients(ctx context.Context, criteria identifymodels.SearchCriteria) ([]*clinic.Patient, error)

	PutAppointments(ctx context.Context, patientID id.PatientID, appointments []clinic.Appointment) error
	GetAppointments(ctx context.Context, patientID id.PatientID) ([]clinic.Appointment, error)
}

// ScheduleEntry pairs a patient with their appointments for one day.
type ScheduleEntry struct {
	Patient      *clinic.Patient      `json:"patient"`
	Appointments []clinic.Appointment `json:"appointments"`
}

// SnapshotSource lists the day's scheduled patients so the refresher can
// prime the snapshot cache while the device is online.
type SnapshotSource interface {
	DaySchedule(ctx context.Context, date time.Time) ([]ScheduleEntry, error)
}

// FailureRecorder persists the terminal audit record for a dropped item.
type FailureRecorder interface {
	RecordSyncFailure(ctx context.Context, failure *models.SyncFailure) error
}

// Handler applies one queued item against its remote collaborator during a
// sync cycle. A returned error counts as one failed attempt.
type Handler interface {
	Apply(ctx context.Context, item *models.Item) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item *models.Item) error

func (f HandlerFunc) Apply(ctx context.Context, item *models.Item) error {
	return f(ctx, item)
}
