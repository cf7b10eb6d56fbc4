// Package records persists check-in records and the sync-failure audit
// trail in the clinic backend database.
package records

import (
	"context"

	checkinmodels "medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
)

// Store is the persistence contract for admission records. Implementations
// return sentinel.ErrNotFound for missing rows.
type Store interface {
	// SaveRecord upserts a record; reconciliation of offline admissions
	// replays the same record ID.
	SaveRecord(ctx context.Context, record *checkinmodels.CheckInRecord) error

	GetRecord(ctx context.Context, checkInID id.CheckInID) (*checkinmodels.CheckInRecord, error)

	// ListByPatient returns a patient's records, newest first.
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]*checkinmodels.CheckInRecord, error)

	UpdateStatus(ctx context.Context, checkInID id.CheckInID, status checkinmodels.Status) error

	// RecordSyncFailure writes the terminal audit record for a dropped
	// offline item.
	RecordSyncFailure(ctx context.Context, failure *offlinemodels.SyncFailure) error

	// ListSyncFailures returns the most recent failures, newest first.
	ListSyncFailures(ctx context.Context, limit int) ([]*offlinemodels.SyncFailure, error)
}
