package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	checkinmodels "medkiosk/internal/checkin/models"
	offlinemodels "medkiosk/internal/offline/models"
	id "medkiosk/pkg/domain"
	"medkiosk/pkg/platform/sentinel"
)

// InMemoryStore is the Store used in unit tests and when no backend database
// is configured (kiosk demo mode).
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[id.CheckInID]*checkinmodels.CheckInRecord
	failures []*offlinemodels.SyncFailure
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.CheckInID]*checkinmodels.CheckInRecord)}
}

func (s *InMemoryStore) SaveRecord(_ context.Context, record *checkinmodels.CheckInRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetRecord(_ context.Context, checkInID id.CheckInID) (*checkinmodels.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.records[checkInID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patientID id.PatientID) ([]*checkinmodels.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*checkinmodels.CheckInRecord
	for _, record := range s.records {
		if record.PatientID == patientID {
			copied := *record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AdmittedAt.After(records[j].AdmittedAt)
	})
	return records, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, checkInID id.CheckInID, status checkinmodels.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[checkInID]
	if !exists {
		return sentinel.ErrNotFound
	}
	record.Status = status
	return nil
}

func (s *InMemoryStore) RecordSyncFailure(_ context.Context, failure *offlinemodels.SyncFailure) error {
	if failure == nil {
		return fmt.Errorf("sync failure is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.failures {
		if existing.ItemID == failure.ItemID {
			return nil
		}
	}
	copied := *failure
	s.failures = append(s.failures, &copied)
	return nil
}

func (s *InMemoryStore) ListSyncFailures(_ context.Context, limit int) ([]*offlinemodels.SyncFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	failures := make([]*offlinemodels.SyncFailure, 0, len(s.failures))
	for _, failure := range s.failures {
		copied := *failure
		failures = append(failures, &copied)
	}
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].FailedAt.After(failures[j].FailedAt)
	})
	if len(failures) > limit {
		failures = failures[:limit]
	}
	return failures, nil
}
