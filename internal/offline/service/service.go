// Package service implements the offline resilience layer: a durable,
// retry-capable work queue plus the cache-only check-in path used while the
// device has no route to the clinic backend.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"medkiosk/internal/analytics"
	checkinmodels "medkiosk/internal/checkin/models"
	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	"medkiosk/internal/offline/config"
	offlinemetrics "medkiosk/internal/offline/metrics"
	"medkiosk/internal/offline/models"
	"medkiosk/internal/offline/ports"
	screeningmodels "medkiosk/internal/screening/models"
	screeningservice "medkiosk/internal/screening/service"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/requestcontext"
)

type Layer struct {
	cfg   config.Config
	store ports.ItemStore
	cache ports.SnapshotCache
	gate  *screeningservice.Gate
	probe clinic.ConnectivityProbe

	recorder  ports.FailureRecorder
	publisher analytics.Publisher
	metrics   *offlinemetrics.Metrics
	logger    *slog.Logger

	group singleflight.Group

	mu              sync.RWMutex
	handlers        map[models.ItemType]ports.Handler
	knownQueueDepth int
}

type Option func(*Layer)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) { l.logger = logger }
}

func WithFailureRecorder(recorder ports.FailureRecorder) Option {
	return func(l *Layer) { l.recorder = recorder }
}

func WithPublisher(publisher analytics.Publisher) Option {
	return func(l *Layer) { l.publisher = publisher }
}

func WithMetrics(metrics *offlinemetrics.Metrics) Option {
	return func(l *Layer) { l.metrics = metrics }
}

func New(cfg config.Config, store ports.ItemStore, cache ports.SnapshotCache, gate *screeningservice.Gate, probe clinic.ConnectivityProbe, opts ...Option) (*Layer, error) {
	if store == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("snapshot cache is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("screening gate is required")
	}
	if probe == nil {
		return nil, fmt.Errorf("connectivity probe is required")
	}
	l := &Layer{
		cfg:       cfg,
		store:     store,
		cache:     cache,
		gate:      gate,
		probe:     probe,
		publisher: analytics.NopPublisher{},
		logger:    slog.Default(),
		handlers:  make(map[models.ItemType]ports.Handler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.handlers[models.ItemAnalytics] = ports.HandlerFunc(l.replayAnalytics)
	return l, nil
}

// RegisterHandler binds the sync-time applier for one item type. Items with
// no registered handler fail their attempts until retries run out.
func (l *Layer) RegisterHandler(itemType models.ItemType, handler ports.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[itemType] = handler
}

// SetKnownQueueDepth records the last queue depth observed while online. It
// seeds provisional positions for offline admissions.
func (l *Layer) SetKnownQueueDepth(depth int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if depth >= 0 {
		l.knownQueueDepth = depth
	}
}

// Enqueue persists one unit of deferred work. A full queue evicts its
// lowest-priority item to make room; the eviction leaves an audit record.
func (l *Layer) Enqueue(ctx context.Context, itemType models.ItemType, payload json.RawMessage, priority models.Priority) (id.ItemID, error) {
	if !priority.Valid() {
		return id.ItemID{}, dErrors.Newf(dErrors.CodeValidation, "unknown priority %q", priority)
	}
	now := requestcontext.Now(ctx)

	depth, err := l.store.Len(ctx)
	if err != nil {
		return id.ItemID{}, fmt.Errorf("offline queue length: %w", err)
	}
	if depth >= l.cfg.Capacity {
		if err := l.evictOne(ctx, now); err != nil {
			return id.ItemID{}, err
		}
		depth--
	}

	item := &models.Item{
		ID:         id.NewItemID(),
		Type:       itemType,
		Priority:   priority,
		Payload:    payload,
		MaxRetries: l.cfg.MaxRetries,
		EnqueuedAt: now,
	}
	if err := l.store.Put(ctx, item); err != nil {
		return id.ItemID{}, fmt.Errorf("enqueue offline item: %w", err)
	}
	if l.metrics != nil {
		l.metrics.SetBacklog(depth + 1)
	}
	return item.ID, nil
}

func (l *Layer) evictOne(ctx context.Context, now time.Time) error {
	victim, err := l.store.EvictLowest(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeCapacity, "offline queue is full and nothing is evictable")
	}
	if err != nil {
		return fmt.Errorf("evict offline item: %w", err)
	}

	l.logger.WarnContext(ctx, "offline queue full, evicted lowest-priority item",
		"item_id", victim.ID,
		"item_type", victim.Type,
		"priority", victim.Priority,
	)
	l.recordDrop(ctx, victim, models.DropEvicted, now)
	return nil
}

// ProcessCheckInOffline runs the cache-only admission path. Validation uses
// nothing but local snapshots; any gap in the cache fails the attempt locally
// instead of blocking on an unreachable backend.
func (l *Layer) ProcessCheckInOffline(ctx context.Context, req *checkinmodels.CheckInRequest) (*checkinmodels.CheckInResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	patient, result, err := l.resolvePatient(ctx, req)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	appointment, failure := l.sameDayAppointment(ctx, patient.ID, now)
	if failure != nil {
		return &checkinmodels.CheckInResult{Failure: failure, Offline: true}, nil
	}

	decision := l.gate.Assess(req.Questionnaire)
	if !decision.Admits() {
		return &checkinmodels.CheckInResult{
			Failure: &checkinmodels.Failure{
				Reason: checkinmodels.ReasonScreeningFailed,
				Detail: decision.Reason,
				Issues: screeningIssues(decision.RiskFactors),
			},
			Offline: true,
		}, nil
	}

	position, wait, err := l.provisionalPosition(ctx)
	if err != nil {
		return nil, err
	}

	record := &checkinmodels.CheckInRecord{
		ID:                   id.NewCheckInID(),
		PatientID:            patient.ID,
		PatientName:          patient.FullName,
		AppointmentID:        appointment.ID,
		AdmittedAt:           now,
		Method:               identificationMethod(req),
		ScreeningOutcome:     decision.Outcome,
		Status:               checkinmodels.StatusCompleted,
		Category:             appointment.Category,
		ScheduledAt:          appointment.ScheduledAt,
		PatientAge:           age(patient.BirthDate, now),
		SpecialNeeds:         patient.SpecialNeeds,
		QueuePosition:        position,
		EstimatedWaitMinutes: wait,
		Provisional:          true,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode provisional record: %w", err)
	}
	if _, err := l.Enqueue(ctx, models.ItemCheckIn, payload, checkInPriority(record.Category)); err != nil {
		return nil, err
	}

	// The broker is as unreachable as the backend right now; the event rides
	// the offline queue and is published during sync.
	l.queueAnalytics(ctx, analytics.Event{
		Type:       analytics.EventCheckInOffline,
		DeviceID:   req.DeviceID,
		PatientID:  patient.ID,
		OccurredAt: now,
		Detail:     map[string]any{"category": record.Category, "provisional_position": position},
	})

	return &checkinmodels.CheckInResult{
		Success: true,
		Record:  record,
		Offline: true,
	}, nil
}

// resolvePatient finds the patient in the snapshot cache by explicit
// selection or attribute criteria. A non-nil result short-circuits the flow
// (ambiguous match or local validation failure).
func (l *Layer) resolvePatient(ctx context.Context, req *checkinmodels.CheckInRequest) (*clinic.Patient, *checkinmodels.CheckInResult, error) {
	if req.SelectedPatientID != nil {
		patient, err := l.cache.GetPatient(ctx, *req.SelectedPatientID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, offlineFailure("selected patient is not in the local snapshot"), nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot lookup: %w", err)
		}
		return patient, nil, nil
	}

	if req.SearchCriteria == nil {
		// Biometric matching needs the backend; the kiosk falls back to
		// attribute search while offline.
		return nil, offlineFailure("biometric identification is unavailable offline; use attribute search"), nil
	}
	if err := req.SearchCriteria.Validate(); err != nil {
		return nil, nil, err
	}

	matches, err := l.cache.FindPatients(ctx, *req.SearchCriteria)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot search: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, offlineFailure("no cached patient matches the given criteria"), nil
	case 1:
		return matches[0], nil, nil
	default:
		candidates := make([]identifymodels.PatientMatch, 0, len(matches))
		for _, p := range matches {
			candidates = append(candidates, identifymodels.PatientMatch{
				PatientID:  p.ID,
				FullName:   p.FullName,
				Confidence: 1.0,
			})
		}
		return nil, &checkinmodels.CheckInResult{
			RequiresManualSelection: true,
			AmbiguousMatches:        candidates,
			Offline:                 true,
		}, nil
	}
}

func (l *Layer) sameDayAppointment(ctx context.Context, patientID id.PatientID, now time.Time) (*clinic.Appointment, *checkinmodels.Failure) {
	appointments, err := l.cache.GetAppointments(ctx, patientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &checkinmodels.Failure{
			Reason: checkinmodels.ReasonOfflineUnvalidated,
			Detail: "no cached appointments for this patient",
		}
	}
	if err != nil {
		return nil, &checkinmodels.Failure{
			Reason: checkinmodels.ReasonOfflineUnvalidated,
			Detail: "appointment snapshot unavailable",
		}
	}

	y, m, d := now.Date()
	for i := range appointments {
		ay, am, ad := appointments[i].ScheduledAt.Date()
		if ay == y && am == m && ad == d {
			return &appointments[i], nil
		}
	}
	return nil, &checkinmodels.Failure{
		Reason: checkinmodels.ReasonOfflineUnvalidated,
		Detail: "no cached appointment for today",
	}
}

// provisionalPosition estimates where an offline admission lands: the last
// depth seen online plus check-ins already accepted during the outage.
func (l *Layer) provisionalPosition(ctx context.Context) (int, int, error) {
	items, err := l.store.Items(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("offline queue: %w", err)
	}
	pending := 0
	for _, item := range items {
		if item.Type == models.ItemCheckIn {
			pending++
		}
	}

	l.mu.RLock()
	depth := l.knownQueueDepth
	l.mu.RUnlock()

	position := depth + pending + 1
	wait := 0
	if position > 1 {
		wait = (position - 1) * (l.cfg.ProvisionalServiceMinutes + l.cfg.ProvisionalBufferMinutes)
	}
	return position, wait, nil
}

// queueAnalytics defers an event until a sync cycle can reach the broker.
func (l *Layer) queueAnalytics(ctx context.Context, event analytics.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to encode analytics event for offline queue", "type", event.Type, "error", err)
		return
	}
	if _, err := l.Enqueue(ctx, models.ItemAnalytics, payload, models.PriorityLow); err != nil {
		l.logger.ErrorContext(ctx, "failed to queue analytics event", "type", event.Type, "error", err)
	}
}

// replayAnalytics publishes an event that was held while offline.
func (l *Layer) replayAnalytics(ctx context.Context, item *models.Item) error {
	var event analytics.Event
	if err := json.Unmarshal(item.Payload, &event); err != nil {
		return fmt.Errorf("decode queued analytics event: %w", err)
	}
	l.publisher.Publish(ctx, event)
	return nil
}

// Sync runs one reconciliation cycle. Cycles are single-flight: a cycle
// requested while another runs joins the running one instead of overlapping.
// Sync fails immediately while the device is offline.
func (l *Layer) Sync(ctx context.Context) (*models.SyncReport, error) {
	report, err, _ := l.group.Do("sync", func() (any, error) {
		return l.syncCycle(ctx)
	})
	if err != nil {
		return nil, err
	}
	return report.(*models.SyncReport), nil
}

func (l *Layer) syncCycle(ctx context.Context) (*models.SyncReport, error) {
	if !l.probe.Online(ctx) {
		return nil, dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "cannot sync while offline")
	}
	start := requestcontext.Now(ctx)
	report := &models.SyncReport{StartedAt: start}

	items, err := l.store.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("offline queue: %w", err)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if l.applyItem(ctx, item) {
			if err := l.store.Remove(ctx, item.ID); err != nil {
				l.logger.ErrorContext(ctx, "failed to remove synced item", "item_id", item.ID, "error", err)
				continue
			}
			report.Synced++
			continue
		}

		item.Retries++
		if item.Retries >= item.MaxRetries {
			if err := l.store.Remove(ctx, item.ID); err != nil {
				l.logger.ErrorContext(ctx, "failed to remove exhausted item", "item_id", item.ID, "error", err)
				continue
			}
			l.recordDrop(ctx, item, models.DropRetriesExhausted, start)
			report.Dropped++
			continue
		}
		if err := l.store.Update(ctx, item); err != nil {
			l.logger.ErrorContext(ctx, "failed to persist retry count", "item_id", item.ID, "error", err)
		}
		report.Failed++
	}

	report.Duration = time.Since(start)
	if l.metrics != nil {
		depth, err := l.store.Len(ctx)
		if err == nil {
			l.metrics.SetBacklog(depth)
		}
		l.metrics.ObserveSyncCycle(report.Synced, report.Failed, report.Duration)
	}
	l.logger.InfoContext(ctx, "sync cycle finished",
		"synced", report.Synced,
		"failed", report.Failed,
		"dropped", report.Dropped,
	)
	return report, nil
}

func (l *Layer) applyItem(ctx context.Context, item *models.Item) bool {
	l.mu.RLock()
	handler := l.handlers[item.Type]
	l.mu.RUnlock()

	if handler == nil {
		l.logger.WarnContext(ctx, "no handler registered for offline item type", "item_type", item.Type)
		return false
	}
	if err := handler.Apply(ctx, item); err != nil {
		l.logger.WarnContext(ctx, "offline item sync attempt failed",
			"item_id", item.ID,
			"item_type", item.Type,
			"retries", item.Retries,
			"error", err,
		)
		return false
	}
	return true
}

// recordDrop writes the terminal audit trail for an item leaving the queue
// unsynced. Dropped work is never silent.
func (l *Layer) recordDrop(ctx context.Context, item *models.Item, reason models.DropReason, now time.Time) {
	failure := &models.SyncFailure{
		ItemID:   item.ID,
		Type:     item.Type,
		Priority: item.Priority,
		Payload:  item.Payload,
		Retries:  item.Retries,
		Reason:   reason,
		FailedAt: now,
	}
	if l.recorder != nil {
		if err := l.recorder.RecordSyncFailure(ctx, failure); err != nil {
			l.logger.ErrorContext(ctx, "failed to record sync failure",
				"item_id", item.ID,
				"reason", reason,
				"error", err,
			)
		}
	}
	if l.metrics != nil {
		l.metrics.IncrementDropped(string(reason))
	}
	l.publisher.Publish(ctx, analytics.Event{
		Type:   analytics.EventSyncItemDropped,
		Detail: map[string]any{"item_id": item.ID.String(), "item_type": item.Type, "reason": reason},
	})
}

// RunSync drives periodic reconciliation until the context is cancelled.
// Offline cycles are skipped quietly; anything else is logged and retried on
// the next tick.
func (l *Layer) RunSync(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.probe.Online(ctx) {
				continue
			}
			if _, err := l.Sync(ctx); err != nil {
				l.logger.WarnContext(ctx, "periodic sync failed", "error", err)
			}
		}
	}
}

func offlineFailure(detail string) *checkinmodels.CheckInResult {
	return &checkinmodels.CheckInResult{
		Failure: &checkinmodels.Failure{
			Reason: checkinmodels.ReasonOfflineUnvalidated,
			Detail: detail,
		},
		Offline: true,
	}
}

func screeningIssues(factors []screeningmodels.RiskFactor) []string {
	issues := make([]string, 0, len(factors))
	for _, f := range factors {
		issues = append(issues, f.Description)
	}
	return issues
}

func identificationMethod(req *checkinmodels.CheckInRequest) checkinmodels.IdentificationMethod {
	if req.SelectedPatientID != nil {
		return checkinmodels.MethodManualSelection
	}
	return checkinmodels.MethodAttributeSearch
}

func checkInPriority(category checkinmodels.Category) models.Priority {
	switch category {
	case checkinmodels.CategoryEmergency:
		return models.PriorityCritical
	case checkinmodels.CategoryFollowUp:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}

func age(birthDate time.Time, now time.Time) int {
	if birthDate.IsZero() {
		return 0
	}
	years := now.Year() - birthDate.Year()
	if now.YearDay() < birthDate.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
