//go:build integration

package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	checkinmodels "medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	"medkiosk/internal/records"
	screeningmodels "medkiosk/internal/screening/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/platform/tx"
	"medkiosk/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *records.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = records.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "checkin_records", "sync_failures")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) record() *checkinmodels.CheckInRecord {
	return &checkinmodels.CheckInRecord{
		ID:                   id.NewCheckInID(),
		PatientID:            id.NewPatientID(),
		PatientName:          "Joana Pereira",
		AppointmentID:        id.NewAppointmentID(),
		AdmittedAt:           time.Now().UTC().Truncate(time.Microsecond),
		Method:               checkinmodels.MethodBiometric,
		ScreeningOutcome:     screeningmodels.OutcomeApproved,
		Status:               checkinmodels.StatusCompleted,
		Category:             checkinmodels.CategoryFollowUp,
		ScheduledAt:          time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond),
		PatientAge:           68,
		SpecialNeeds:         true,
		QueuePosition:        2,
		EstimatedWaitMinutes: 18,
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()
	record := s.record()

	s.Require().NoError(s.store.SaveRecord(ctx, record))

	got, err := s.store.GetRecord(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.PatientID, got.PatientID)
	s.Equal(record.PatientName, got.PatientName)
	s.Equal(record.Category, got.Category)
	s.Equal(record.PatientAge, got.PatientAge)
	s.True(got.SpecialNeeds)
	s.True(record.ScheduledAt.Equal(got.ScheduledAt))
}

func (s *PostgresStoreSuite) TestSaveRecord_UpsertRefreshesPosition() {
	ctx := context.Background()
	record := s.record()
	s.Require().NoError(s.store.SaveRecord(ctx, record))

	record.QueuePosition = 1
	record.EstimatedWaitMinutes = 0
	record.Provisional = false
	s.Require().NoError(s.store.SaveRecord(ctx, record))

	got, err := s.store.GetRecord(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(1, got.QueuePosition)
	s.Equal(0, got.EstimatedWaitMinutes)
}

func (s *PostgresStoreSuite) TestGetRecord_Missing() {
	_, err := s.store.GetRecord(context.Background(), id.NewCheckInID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	record := s.record()
	s.Require().NoError(s.store.SaveRecord(ctx, record))

	s.Require().NoError(s.store.UpdateStatus(ctx, record.ID, checkinmodels.StatusCancelled))
	got, err := s.store.GetRecord(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(checkinmodels.StatusCancelled, got.Status)

	s.Require().ErrorIs(s.store.UpdateStatus(ctx, id.NewCheckInID(), checkinmodels.StatusFailed), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByPatient_NewestFirst() {
	ctx := context.Background()
	older := s.record()
	newer := s.record()
	newer.PatientID = older.PatientID
	newer.AdmittedAt = older.AdmittedAt.Add(time.Hour)

	s.Require().NoError(s.store.SaveRecord(ctx, older))
	s.Require().NoError(s.store.SaveRecord(ctx, newer))

	got, err := s.store.ListByPatient(ctx, older.PatientID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(newer.ID, got[0].ID)
}

func (s *PostgresStoreSuite) TestSyncFailureAuditTrail() {
	ctx := context.Background()
	failure := &offlinemodels.SyncFailure{
		ItemID:   id.NewItemID(),
		Type:     offlinemodels.ItemCheckIn,
		Priority: offlinemodels.PriorityCritical,
		Payload:  []byte(`{"note":"provisional"}`),
		Retries:  3,
		Reason:   offlinemodels.DropRetriesExhausted,
		FailedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	s.Require().NoError(s.store.RecordSyncFailure(ctx, failure))
	// Replaying the same drop must not duplicate the audit row.
	s.Require().NoError(s.store.RecordSyncFailure(ctx, failure))

	failures, err := s.store.ListSyncFailures(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(failures, 1)
	s.Equal(failure.ItemID, failures[0].ItemID)
	s.Equal(offlinemodels.DropRetriesExhausted, failures[0].Reason)
	s.Equal(3, failures[0].Retries)
}

func (s *PostgresStoreSuite) TestSaveRecord_RespectsContextTransaction() {
	ctx := context.Background()
	record := s.record()

	txn, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.store.SaveRecord(tx.WithTx(ctx, txn), record))
	s.Require().NoError(txn.Rollback())

	// The rollback must take the write with it.
	_, err = s.store.GetRecord(ctx, record.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
