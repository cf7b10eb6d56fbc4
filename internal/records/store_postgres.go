package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	checkinmodels "medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	screeningmodels "medkiosk/internal/screening/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/platform/tx"
)

// Schema creates the records tables. Applied at startup and by the
// integration test harness; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS checkin_records (
    id UUID PRIMARY KEY,
    patient_id UUID NOT NULL,
    patient_name TEXT NOT NULL DEFAULT '',
    appointment_id UUID NOT NULL,
    admitted_at TIMESTAMPTZ NOT NULL,
    method TEXT NOT NULL,
    screening_outcome TEXT NOT NULL,
    status TEXT NOT NULL,
    category TEXT NOT NULL,
    scheduled_at TIMESTAMPTZ,
    patient_age INT NOT NULL DEFAULT 0,
    special_needs BOOLEAN NOT NULL DEFAULT FALSE,
    queue_position INT NOT NULL DEFAULT 0,
    estimated_wait_minutes INT NOT NULL DEFAULT 0,
    provisional BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS checkin_records_patient_idx
    ON checkin_records (patient_id, admitted_at DESC);

CREATE TABLE IF NOT EXISTS sync_failures (
    item_id UUID PRIMARY KEY,
    item_type TEXT NOT NULL,
    priority TEXT NOT NULL,
    payload JSONB,
    retries INT NOT NULL,
    reason TEXT NOT NULL,
    failed_at TIMESTAMPTZ NOT NULL
);
`

const (
	upsertRecordSQL = `
INSERT INTO checkin_records (
    id, patient_id, patient_name, appointment_id, admitted_at, method,
    screening_outcome, status, category, scheduled_at, patient_age,
    special_needs, queue_position, estimated_wait_minutes, provisional
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    queue_position = EXCLUDED.queue_position,
    estimated_wait_minutes = EXCLUDED.estimated_wait_minutes,
    provisional = EXCLUDED.provisional`

	selectRecordColumns = `
    id, patient_id, patient_name, appointment_id, admitted_at, method,
    screening_outcome, status, category, scheduled_at, patient_age,
    special_needs, queue_position, estimated_wait_minutes, provisional`

	insertSyncFailureSQL = `
INSERT INTO sync_failures (item_id, item_type, priority, payload, retries, reason, failed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (item_id) DO NOTHING`
)

// PostgresStore persists check-in records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// executor abstracts *sql.DB and *sql.Tx so callers can run store methods
// inside a transaction by placing it in context via pkg/platform/tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) exec(ctx context.Context) executor {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return s.db
}

// EnsureSchema applies the table definitions.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.exec(ctx).ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, record *checkinmodels.CheckInRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	_, err := s.exec(ctx).ExecContext(ctx, upsertRecordSQL,
		record.ID.String(),
		record.PatientID.String(),
		record.PatientName,
		record.AppointmentID.String(),
		record.AdmittedAt,
		string(record.Method),
		string(record.ScreeningOutcome),
		string(record.Status),
		string(record.Category),
		nullTime(record.ScheduledAt),
		record.PatientAge,
		record.SpecialNeeds,
		record.QueuePosition,
		record.EstimatedWaitMinutes,
		record.Provisional,
	)
	if err != nil {
		return fmt.Errorf("save check-in record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, checkInID id.CheckInID) (*checkinmodels.CheckInRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT`+selectRecordColumns+` FROM checkin_records WHERE id = $1`,
		checkInID.String(),
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get check-in record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID id.PatientID) ([]*checkinmodels.CheckInRecord, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT`+selectRecordColumns+` FROM checkin_records WHERE patient_id = $1 ORDER BY admitted_at DESC`,
		patientID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list check-in records: %w", err)
	}
	defer rows.Close()

	var records []*checkinmodels.CheckInRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check-in record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list check-in records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, checkInID id.CheckInID, status checkinmodels.Status) error {
	result, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE checkin_records SET status = $2 WHERE id = $1`,
		checkInID.String(), string(status),
	)
	if err != nil {
		return fmt.Errorf("update check-in status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update check-in status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordSyncFailure(ctx context.Context, failure *offlinemodels.SyncFailure) error {
	if failure == nil {
		return fmt.Errorf("sync failure is required")
	}
	payload := failure.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}
	_, err := s.exec(ctx).ExecContext(ctx, insertSyncFailureSQL,
		failure.ItemID.String(),
		string(failure.Type),
		string(failure.Priority),
		[]byte(payload),
		failure.Retries,
		string(failure.Reason),
		failure.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("record sync failure: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSyncFailures(ctx context.Context, limit int) ([]*offlinemodels.SyncFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT item_id, item_type, priority, payload, retries, reason, failed_at
		 FROM sync_failures ORDER BY failed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync failures: %w", err)
	}
	defer rows.Close()

	var failures []*offlinemodels.SyncFailure
	for rows.Next() {
		var (
			failure   offlinemodels.SyncFailure
			itemID    string
			itemType  string
			priority  string
			payload   []byte
			dropCause string
		)
		if err := rows.Scan(&itemID, &itemType, &priority, &payload, &failure.Retries, &dropCause, &failure.FailedAt); err != nil {
			return nil, fmt.Errorf("scan sync failure: %w", err)
		}
		parsed, err := id.ParseItemID(itemID)
		if err != nil {
			return nil, fmt.Errorf("scan sync failure: %w", err)
		}
		failure.ItemID = parsed
		failure.Type = offlinemodels.ItemType(itemType)
		failure.Priority = offlinemodels.Priority(priority)
		failure.Payload = payload
		failure.Reason = offlinemodels.DropReason(dropCause)
		failures = append(failures, &failure)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sync failures: %w", err)
	}
	return failures, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*checkinmodels.CheckInRecord, error) {
	var (
		record        checkinmodels.CheckInRecord
		recordID      string
		patientID     string
		appointmentID string
		method        string
		outcome       string
		status        string
		category      string
		scheduledAt   sql.NullTime
	)
	err := row.Scan(
		&recordID,
		&patientID,
		&record.PatientName,
		&appointmentID,
		&record.AdmittedAt,
		&method,
		&outcome,
		&status,
		&category,
		&scheduledAt,
		&record.PatientAge,
		&record.SpecialNeeds,
		&record.QueuePosition,
		&record.EstimatedWaitMinutes,
		&record.Provisional,
	)
	if err != nil {
		return nil, err
	}

	if record.ID, err = id.ParseCheckInID(recordID); err != nil {
		return nil, err
	}
	if record.PatientID, err = id.ParsePatientID(patientID); err != nil {
		return nil, err
	}
	if record.AppointmentID, err = id.ParseAppointmentID(appointmentID); err != nil {
		return nil, err
	}
	record.Method = checkinmodels.IdentificationMethod(method)
	record.ScreeningOutcome = screeningmodels.Outcome(outcome)
	record.Status = checkinmodels.Status(status)
	record.Category = checkinmodels.Category(category)
	if scheduledAt.Valid {
		record.ScheduledAt = scheduledAt.Time
	}
	return &record, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
