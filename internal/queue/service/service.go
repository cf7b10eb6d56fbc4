// Package service implements the waiting-queue scheduler: admission,
// priority ranking, wait prediction, and position change notification.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	checkinmodels "medkiosk/internal/checkin/models"
	"medkiosk/internal/clinic"
	"medkiosk/internal/queue/config"
	queuemetrics "medkiosk/internal/queue/metrics"
	"medkiosk/internal/queue/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/requestcontext"
)

// Manager owns all queue state for one clinic instance. Every mutation
// (admit, remove, next) runs as one atomic section under a single mutex, so
// re-ranking is never observed half-applied even though it spans many
// priority recomputations.
type Manager struct {
	mu      sync.Mutex
	entries []*models.Entry

	cfg       config.Config
	predictor Predictor
	history   *serviceHistory

	notifier clinic.NotificationService
	metrics  *queuemetrics.Metrics
	logger   *slog.Logger

	lastServiceStart time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithNotifier(notifier clinic.NotificationService) Option {
	return func(m *Manager) { m.notifier = notifier }
}

func WithMetrics(metrics *queuemetrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithPredictor(predictor Predictor) Option {
	return func(m *Manager) { m.predictor = predictor }
}

func New(cfg config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		history: newServiceHistory(cfg.Prediction.HistoryWindow),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.predictor == nil {
		m.predictor = NewHeuristicPredictor(cfg.Prediction, nil)
	}
	return m
}

// Admit inserts a record and re-ranks the whole queue. A patient already
// holding an entry is rejected: at most one QueueEntry per patient.
func (m *Manager) Admit(ctx context.Context, rec *checkinmodels.CheckInRecord) (*models.Position, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is required")
	}
	now := requestcontext.Now(ctx)

	m.mu.Lock()
	if m.findLocked(rec.PatientID) != nil {
		m.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, "patient already has an active queue entry")
	}

	entry := &models.Entry{
		Record:                  rec,
		EstimatedServiceMinutes: m.serviceMinutesLocked(),
		InsertedAt:              now,
	}
	m.entries = append(m.entries, entry)
	shifted := m.rerankLocked(now, rec.PatientID)

	position := &models.Position{
		Position:             rec.QueuePosition,
		EstimatedWaitMinutes: rec.EstimatedWaitMinutes,
	}
	depth := len(m.entries)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetQueueDepth(depth)
		m.metrics.IncrementAdmissions(string(rec.Category))
		m.metrics.ObservePredictedWait(position.EstimatedWaitMinutes)
	}
	m.notifyShifted(ctx, shifted)

	return position, nil
}

// Remove takes a patient out of the queue. Absent patients return false, not
// an error: removal is idempotent from the caller's perspective.
func (m *Manager) Remove(ctx context.Context, patientID id.PatientID) bool {
	now := requestcontext.Now(ctx)

	m.mu.Lock()
	idx := -1
	for i, e := range m.entries {
		if e.Record.PatientID == patientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	shifted := m.rerankLocked(now, id.PatientID{})
	depth := len(m.entries)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetQueueDepth(depth)
		m.metrics.IncrementRemovals()
	}
	m.notifyShifted(ctx, shifted)
	return true
}

// Next pops the highest-priority entry for service, or nil when the queue is
// empty. The gap between successive calls feeds the historical service
// duration average.
func (m *Manager) Next(ctx context.Context) *checkinmodels.CheckInRecord {
	now := requestcontext.Now(ctx)

	m.mu.Lock()
	if len(m.entries) == 0 {
		m.mu.Unlock()
		return nil
	}
	next := m.entries[0]
	m.entries = m.entries[1:]

	if !m.lastServiceStart.IsZero() {
		m.history.record(now.Sub(m.lastServiceStart).Minutes())
	}
	m.lastServiceStart = now

	shifted := m.rerankLocked(now, id.PatientID{})
	depth := len(m.entries)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetQueueDepth(depth)
		m.metrics.IncrementRemovals()
	}
	m.notifyShifted(ctx, shifted)
	return next.Record
}

// Snapshot returns a consistent read-only view of the queue.
func (m *Manager) Snapshot(ctx context.Context) *models.Snapshot {
	now := requestcontext.Now(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := &models.Snapshot{
		Depth:          len(m.entries),
		Entries:        make([]models.EntryView, 0, len(m.entries)),
		CategoryCounts: make(map[checkinmodels.Category]int),
		TakenAt:        now,
	}
	totalWait := 0
	for _, e := range m.entries {
		snapshot.Entries = append(snapshot.Entries, models.EntryView{
			PatientID:            e.Record.PatientID,
			PatientName:          e.Record.PatientName,
			Category:             e.Record.Category,
			Position:             e.Record.QueuePosition,
			Priority:             e.Priority,
			EstimatedWaitMinutes: e.Record.EstimatedWaitMinutes,
			WaitingSince:         e.InsertedAt,
		})
		snapshot.CategoryCounts[e.Record.Category]++
		totalWait += e.Record.EstimatedWaitMinutes
	}
	if len(m.entries) > 0 {
		snapshot.AverageWaitMinutes = totalWait / len(m.entries)
	}
	return snapshot
}

// shiftNotice is a pending position-change notification, sent after the
// lock is released.
type shiftNotice struct {
	patientID id.PatientID
	position  int
	wait      int
}

// rerankLocked recomputes every priority, sorts, reassigns contiguous 1..N
// positions, and refreshes wait estimates. Must be called while holding m.mu.
// skip suppresses the notice for the patient who triggered the mutation.
func (m *Manager) rerankLocked(now time.Time, skip id.PatientID) []shiftNotice {
	for _, e := range m.entries {
		e.Priority = m.priority(e, now)
	}

	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].Priority != m.entries[j].Priority {
			return m.entries[i].Priority > m.entries[j].Priority
		}
		// Ties break toward the longer elapsed wait.
		return m.entries[i].InsertedAt.Before(m.entries[j].InsertedAt)
	})

	avg := m.history.average()
	var shifted []shiftNotice
	for i, e := range m.entries {
		position := i + 1
		wait := m.predictor.Predict(position, avg, now)

		changed := e.Record.QueuePosition != position || e.Record.EstimatedWaitMinutes != wait
		e.Record.QueuePosition = position
		e.Record.EstimatedWaitMinutes = wait

		if changed && e.Record.PatientID != skip {
			shifted = append(shifted, shiftNotice{
				patientID: e.Record.PatientID,
				position:  position,
				wait:      wait,
			})
		}
	}
	return shifted
}

// priority implements the additive formula: category base, capped lateness
// bonus, elderly bonus, special-needs bonus, and an uncapped waiting-time
// term so no category starves another indefinitely.
func (m *Manager) priority(e *models.Entry, now time.Time) float64 {
	w := m.cfg.Weights
	score := w.CategoryBase[e.Record.Category]

	if !e.Record.ScheduledAt.IsZero() && now.After(e.Record.ScheduledAt) {
		delay := now.Sub(e.Record.ScheduledAt).Minutes() * w.DelayBonusPerMinute
		if delay > w.DelayBonusCap {
			delay = w.DelayBonusCap
		}
		score += delay
	}
	if e.Record.PatientAge >= w.ElderlyAge {
		score += w.ElderlyBonus
	}
	if e.Record.SpecialNeeds {
		score += w.SpecialNeedsBonus
	}
	score += now.Sub(e.InsertedAt).Minutes() * w.WaitingBonusPerMinute

	return score
}

func (m *Manager) serviceMinutesLocked() int {
	if avg := m.history.average(); avg > 0 {
		return int(avg)
	}
	return int(m.cfg.Prediction.DefaultServiceMinutes)
}

func (m *Manager) findLocked(patientID id.PatientID) *models.Entry {
	for _, e := range m.entries {
		if e.Record.PatientID == patientID {
			return e
		}
	}
	return nil
}

// notifyShifted delivers position updates outside the queue lock. Delivery
// failures are logged; position state is already authoritative.
func (m *Manager) notifyShifted(ctx context.Context, shifted []shiftNotice) {
	if m.notifier == nil {
		return
	}
	for _, n := range shifted {
		msg := fmt.Sprintf("You are now number %d in the queue. Estimated wait: %d minutes.", n.position, n.wait)
		if err := m.notifier.NotifyPatient(ctx, n.patientID, msg); err != nil {
			m.logger.WarnContext(ctx, "failed to notify patient of position change",
				"patient_id", n.patientID,
				"position", n.position,
				"error", err,
			)
		}
	}
}
