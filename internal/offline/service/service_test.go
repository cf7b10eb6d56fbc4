package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medkiosk/internal/analytics"
	checkinmodels "medkiosk/internal/checkin/models"
	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	"medkiosk/internal/offline/cache"
	"medkiosk/internal/offline/config"
	"medkiosk/internal/offline/models"
	"medkiosk/internal/offline/ports"
	"medkiosk/internal/offline/store/memory"
	screeningconfig "medkiosk/internal/screening/config"
	screeningmodels "medkiosk/internal/screening/models"
	screeningservice "medkiosk/internal/screening/service"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/requestcontext"
)

type fakeProbe struct {
	online bool
}

func (f *fakeProbe) Online(context.Context) bool { return f.online }

// fakeRecorder captures terminal sync failure records.
type fakeRecorder struct {
	failures []*models.SyncFailure
}

func (f *fakeRecorder) RecordSyncFailure(_ context.Context, failure *models.SyncFailure) error {
	f.failures = append(f.failures, failure)
	return nil
}

// scriptedHandler fails a fixed number of attempts before succeeding.
type scriptedHandler struct {
	failures int
	applied  []id.ItemID
}

func (h *scriptedHandler) Apply(_ context.Context, item *models.Item) error {
	if h.failures > 0 {
		h.failures--
		return errors.New("backend rejected item")
	}
	h.applied = append(h.applied, item.ID)
	return nil
}

// capturingPublisher records events instead of producing them.
type capturingPublisher struct {
	events []analytics.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event analytics.Event) {
	p.events = append(p.events, event)
}

func (p *capturingPublisher) Close() {}

type OfflineLayerSuite struct {
	suite.Suite
	layer    *Layer
	store    *memory.InMemoryItemStore
	cache    *cache.MemorySnapshotCache
	probe    *fakeProbe
	recorder *fakeRecorder
	ctx      context.Context
	now      time.Time
}

func TestOfflineLayerSuite(t *testing.T) {
	suite.Run(t, new(OfflineLayerSuite))
}

func (s *OfflineLayerSuite) SetupTest() {
	s.now = time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = memory.New()
	s.cache = cache.NewMemory(time.Hour)
	s.probe = &fakeProbe{online: true}
	s.recorder = &fakeRecorder{}

	cfg := config.DefaultConfig()
	cfg.Capacity = 5
	cfg.MaxRetries = 3

	gate := screeningservice.New(screeningconfig.DefaultConfig())
	var err error
	s.layer, err = New(cfg, s.store, s.cache, gate, s.probe, WithFailureRecorder(s.recorder))
	s.Require().NoError(err)
}

func (s *OfflineLayerSuite) cachePatient(name string) *clinic.Patient {
	patient := &clinic.Patient{
		ID:        id.NewPatientID(),
		FullName:  name,
		BirthDate: time.Date(1980, time.June, 12, 0, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.cache.PutPatient(s.ctx, patient))
	return patient
}

func (s *OfflineLayerSuite) cacheAppointment(patientID id.PatientID, scheduledAt time.Time) clinic.Appointment {
	appointment := clinic.Appointment{
		ID:          id.NewAppointmentID(),
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Category:    checkinmodels.CategoryRoutine,
	}
	s.Require().NoError(s.cache.PutAppointments(s.ctx, patientID, []clinic.Appointment{appointment}))
	return appointment
}

func (s *OfflineLayerSuite) request(patient *clinic.Patient) *checkinmodels.CheckInRequest {
	return &checkinmodels.CheckInRequest{
		DeviceID:          id.NewDeviceID(),
		SelectedPatientID: &patient.ID,
		Questionnaire:     screeningmodels.Questionnaire{Vaccinated: true},
	}
}

func (s *OfflineLayerSuite) TestEnqueue_RejectsUnknownPriority() {
	_, err := s.layer.Enqueue(s.ctx, models.ItemAnalytics, nil, models.Priority("urgent"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *OfflineLayerSuite) TestEnqueue_FullQueueEvictsLowestPriority() {
	for i := 0; i < 4; i++ {
		_, err := s.layer.Enqueue(s.ctx, models.ItemAnalytics, nil, models.PriorityNormal)
		s.Require().NoError(err)
	}
	lowID, err := s.layer.Enqueue(s.ctx, models.ItemProgress, nil, models.PriorityLow)
	s.Require().NoError(err)

	// Queue is at capacity 5; the low-priority item goes first.
	_, err = s.layer.Enqueue(s.ctx, models.ItemCheckIn, nil, models.PriorityCritical)
	s.Require().NoError(err)

	depth, err := s.store.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, depth)

	s.Require().Len(s.recorder.failures, 1)
	s.Equal(lowID, s.recorder.failures[0].ItemID)
	s.Equal(models.DropEvicted, s.recorder.failures[0].Reason)
}

func (s *OfflineLayerSuite) TestSync_RejectedWhileOffline() {
	s.probe.online = false
	_, err := s.layer.Sync(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *OfflineLayerSuite) TestSync_ProcessesInPriorityOrder() {
	handler := &scriptedHandler{}
	s.layer.RegisterHandler(models.ItemCheckIn, handler)
	s.layer.RegisterHandler(models.ItemAnalytics, handler)

	normalID, err := s.layer.Enqueue(s.ctx, models.ItemAnalytics, nil, models.PriorityNormal)
	s.Require().NoError(err)
	criticalID, err := s.layer.Enqueue(requestcontext.WithTime(s.ctx, s.now.Add(time.Minute)), models.ItemCheckIn, nil, models.PriorityCritical)
	s.Require().NoError(err)

	report, err := s.layer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Synced)
	s.Require().Len(handler.applied, 2)
	s.Equal(criticalID, handler.applied[0])
	s.Equal(normalID, handler.applied[1])
}

func (s *OfflineLayerSuite) TestSync_RetriesThenSucceeds() {
	handler := &scriptedHandler{failures: 1}
	s.layer.RegisterHandler(models.ItemNotification, handler)

	_, err := s.layer.Enqueue(s.ctx, models.ItemNotification, nil, models.PriorityNormal)
	s.Require().NoError(err)

	report, err := s.layer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Synced)
	s.Equal(1, report.Failed)

	report, err = s.layer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Synced)

	depth, err := s.store.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, depth)
}

func (s *OfflineLayerSuite) TestSync_ExhaustedItemDroppedExactlyOnce() {
	handler := &scriptedHandler{failures: 100}
	s.layer.RegisterHandler(models.ItemNotification, handler)

	itemID, err := s.layer.Enqueue(s.ctx, models.ItemNotification, nil, models.PriorityNormal)
	s.Require().NoError(err)

	var dropped int
	for i := 0; i < 5; i++ {
		report, err := s.layer.Sync(s.ctx)
		s.Require().NoError(err)
		dropped += report.Dropped
	}

	// Three attempts exhaust the retry budget; later cycles see nothing.
	s.Equal(1, dropped)
	depth, err := s.store.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, depth)

	s.Require().Len(s.recorder.failures, 1)
	s.Equal(itemID, s.recorder.failures[0].ItemID)
	s.Equal(models.DropRetriesExhausted, s.recorder.failures[0].Reason)
}

func (s *OfflineLayerSuite) TestProcessCheckInOffline_AcceptsWithProvisionalPosition() {
	patient := s.cachePatient("Joana Pereira")
	s.cacheAppointment(patient.ID, s.now.Add(time.Hour))
	s.layer.SetKnownQueueDepth(3)

	result, err := s.layer.ProcessCheckInOffline(s.ctx, s.request(patient))
	s.Require().NoError(err)
	s.Require().NotNil(result.Record)
	s.True(result.Success)
	s.True(result.Offline)
	s.True(result.Record.Provisional)
	s.Equal(4, result.Record.QueuePosition)
	s.Equal(3*18, result.Record.EstimatedWaitMinutes)

	// The admission and its analytics event both wait for sync.
	items, err := s.store.Items(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(models.ItemCheckIn, items[0].Type)
	s.Equal(models.ItemAnalytics, items[1].Type)
}

func (s *OfflineLayerSuite) TestProcessCheckInOffline_MissingAppointmentFailsLocally() {
	patient := s.cachePatient("Joana Pereira")
	s.cacheAppointment(patient.ID, s.now.AddDate(0, 0, 1))

	result, err := s.layer.ProcessCheckInOffline(s.ctx, s.request(patient))
	s.Require().NoError(err)
	s.False(result.Success)
	s.Require().NotNil(result.Failure)
	s.Equal(checkinmodels.ReasonOfflineUnvalidated, result.Failure.Reason)
}

func (s *OfflineLayerSuite) TestProcessCheckInOffline_AmbiguousCriteriaNeedsSelection() {
	s.cachePatient("Maria Silva")
	s.cachePatient("Maria Silva")

	result, err := s.layer.ProcessCheckInOffline(s.ctx, &checkinmodels.CheckInRequest{
		DeviceID:       id.NewDeviceID(),
		SearchCriteria: &identifymodels.SearchCriteria{Name: "Maria Silva"},
		Questionnaire:  screeningmodels.Questionnaire{Vaccinated: true},
	})
	s.Require().NoError(err)
	s.True(result.RequiresManualSelection)
	s.Len(result.AmbiguousMatches, 2)
}

func (s *OfflineLayerSuite) TestProcessCheckInOffline_ScreeningStillApplies() {
	patient := s.cachePatient("Joana Pereira")
	s.cacheAppointment(patient.ID, s.now.Add(time.Hour))

	req := s.request(patient)
	req.Questionnaire = screeningmodels.Questionnaire{TemperatureCelsius: 38.0}

	result, err := s.layer.ProcessCheckInOffline(s.ctx, req)
	s.Require().NoError(err)
	s.False(result.Success)
	s.Require().NotNil(result.Failure)
	s.Equal(checkinmodels.ReasonScreeningFailed, result.Failure.Reason)

	depth, err := s.store.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, depth)
}

func (s *OfflineLayerSuite) TestOfflineCheckInSyncsAndLeavesQueue() {
	patient := s.cachePatient("Joana Pereira")
	s.cacheAppointment(patient.ID, s.now.Add(time.Hour))

	s.probe.online = false
	result, err := s.layer.ProcessCheckInOffline(s.ctx, s.request(patient))
	s.Require().NoError(err)
	s.True(result.Success)

	var admitted []id.PatientID
	s.layer.RegisterHandler(models.ItemCheckIn, ports.HandlerFunc(func(_ context.Context, item *models.Item) error {
		var record checkinmodels.CheckInRecord
		if err := json.Unmarshal(item.Payload, &record); err != nil {
			return err
		}
		admitted = append(admitted, record.PatientID)
		return nil
	}))

	s.probe.online = true
	report, err := s.layer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Synced)
	s.Equal([]id.PatientID{patient.ID}, admitted)

	depth, err := s.store.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, depth)
}

func (s *OfflineLayerSuite) TestOfflineCheckInAnalyticsPublishedOnSync() {
	publisher := &capturingPublisher{}
	gate := screeningservice.New(screeningconfig.DefaultConfig())
	layer, err := New(config.DefaultConfig(), s.store, s.cache, gate, s.probe, WithPublisher(publisher))
	s.Require().NoError(err)
	layer.RegisterHandler(models.ItemCheckIn, &scriptedHandler{})

	patient := s.cachePatient("Joana Pereira")
	s.cacheAppointment(patient.ID, s.now.Add(time.Hour))

	s.probe.online = false
	result, err := layer.ProcessCheckInOffline(s.ctx, s.request(patient))
	s.Require().NoError(err)
	s.True(result.Success)
	s.Empty(publisher.events)

	s.probe.online = true
	report, err := layer.Sync(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Synced)

	s.Require().Len(publisher.events, 1)
	s.Equal(analytics.EventCheckInOffline, publisher.events[0].Type)
	s.Equal(patient.ID, publisher.events[0].PatientID)
	s.True(publisher.events[0].OccurredAt.Equal(s.now))
}
