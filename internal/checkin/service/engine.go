// Package service implements the check-in engine: one state machine per
// attempt, driving identification, eligibility, screening, and admission in
// sequence and producing a terminal result.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"medkiosk/internal/analytics"
	checkinmetrics "medkiosk/internal/checkin/metrics"
	"medkiosk/internal/checkin/models"
	"medkiosk/internal/clinic"
	identifymodels "medkiosk/internal/identify/models"
	identifyservice "medkiosk/internal/identify/service"
	offlinemodels "medkiosk/internal/offline/models"
	offlineports "medkiosk/internal/offline/ports"
	offlineservice "medkiosk/internal/offline/service"
	queuemodels "medkiosk/internal/queue/models"
	queueservice "medkiosk/internal/queue/service"
	"medkiosk/internal/records"
	screeningmodels "medkiosk/internal/screening/models"
	screeningservice "medkiosk/internal/screening/service"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
	"medkiosk/pkg/platform/sentinel"
	"medkiosk/pkg/requestcontext"
)

// step names one transient state of the check-in flow. Terminal outcomes are
// results, not steps, so every possible transition is enumerable in the
// table below.
type step string

const (
	stepIdentifying step = "identifying"
	stepValidating  step = "validating_appointment"
	stepScreening   step = "screening"
	stepAdmitting   step = "admitting"
)

// attempt carries the state accumulated across steps of one flow.
type attempt struct {
	req               *models.CheckInRequest
	method            models.IdentificationMethod
	patient           *clinic.Patient
	appointment       *clinic.Appointment
	screeningDecision screeningmodels.Decision
}

// stepFunc runs one state. It returns the next step, or a terminal result,
// or an error for conditions the kiosk cannot remediate in-flow.
type stepFunc func(ctx context.Context, a *attempt) (step, *models.CheckInResult, error)

type Engine struct {
	identifier   *identifyservice.Service
	gate         *screeningservice.Gate
	queue        *queueservice.Manager
	offline      *offlineservice.Layer
	appointments clinic.AppointmentService
	patients     clinic.PatientService
	probe        clinic.ConnectivityProbe
	store        records.Store

	notifier  clinic.NotificationService
	printer   clinic.PrinterService
	publisher analytics.Publisher
	metrics   *checkinmetrics.Metrics
	logger    *slog.Logger

	transitions map[step]stepFunc
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithNotifier(notifier clinic.NotificationService) Option {
	return func(e *Engine) { e.notifier = notifier }
}

func WithPrinter(printer clinic.PrinterService) Option {
	return func(e *Engine) { e.printer = printer }
}

func WithPublisher(publisher analytics.Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithMetrics(metrics *checkinmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

type Dependencies struct {
	Identifier   *identifyservice.Service
	Gate         *screeningservice.Gate
	Queue        *queueservice.Manager
	Offline      *offlineservice.Layer
	Appointments clinic.AppointmentService
	Patients     clinic.PatientService
	Probe        clinic.ConnectivityProbe
	Store        records.Store
}

func New(deps Dependencies, opts ...Option) (*Engine, error) {
	switch {
	case deps.Identifier == nil:
		return nil, fmt.Errorf("identifier is required")
	case deps.Gate == nil:
		return nil, fmt.Errorf("screening gate is required")
	case deps.Queue == nil:
		return nil, fmt.Errorf("queue manager is required")
	case deps.Offline == nil:
		return nil, fmt.Errorf("offline layer is required")
	case deps.Appointments == nil:
		return nil, fmt.Errorf("appointment service is required")
	case deps.Patients == nil:
		return nil, fmt.Errorf("patient service is required")
	case deps.Probe == nil:
		return nil, fmt.Errorf("connectivity probe is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("record store is required")
	}
	e := &Engine{
		identifier:   deps.Identifier,
		gate:         deps.Gate,
		queue:        deps.Queue,
		offline:      deps.Offline,
		appointments: deps.Appointments,
		patients:     deps.Patients,
		probe:        deps.Probe,
		store:        deps.Store,
		publisher:    analytics.NopPublisher{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.transitions = map[step]stepFunc{
		stepIdentifying: e.identify,
		stepValidating:  e.validateAppointment,
		stepScreening:   e.screen,
		stepAdmitting:   e.admit,
	}
	e.offline.RegisterHandler(offlinemodels.ItemCheckIn, offlineports.HandlerFunc(e.reconcileCheckIn))
	e.offline.RegisterHandler(offlinemodels.ItemProgress, offlineports.HandlerFunc(e.persistQueuedRecord))
	e.offline.RegisterHandler(offlinemodels.ItemNotification, offlineports.HandlerFunc(e.redeliverNotification))
	return e, nil
}

// ProcessCheckIn runs one attempt to its terminal result. While the device
// is offline the flow is delegated to the cache-only path.
func (e *Engine) ProcessCheckIn(ctx context.Context, req *models.CheckInRequest) (*models.CheckInResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	if !e.probe.Online(ctx) {
		result, err := e.offline.ProcessCheckInOffline(ctx, req)
		e.observe(result, err, start)
		return result, err
	}

	a := &attempt{req: req}
	current := stepIdentifying
	for {
		next, result, err := e.transitions[current](ctx, a)
		if err != nil || result != nil {
			e.observe(result, err, start)
			return result, err
		}
		current = next
	}
}

func (e *Engine) observe(result *models.CheckInResult, err error, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveFlowDuration(time.Since(start))
	switch {
	case err != nil:
		e.metrics.IncrementCheckIns("error")
	case result.Success:
		e.metrics.IncrementCheckIns("completed")
	case result.RequiresManualSelection:
		e.metrics.IncrementCheckIns("requires_manual_selection")
	case result.Failure != nil:
		e.metrics.IncrementCheckIns(string(result.Failure.Reason))
	}
}

func (e *Engine) identify(ctx context.Context, a *attempt) (step, *models.CheckInResult, error) {
	if a.req.SelectedPatientID != nil {
		patient, err := e.patients.Get(ctx, *a.req.SelectedPatientID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", failureResult(models.ReasonPatientNotFound, "selected patient does not exist"), nil
		}
		if err != nil {
			return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "patient lookup failed")
		}
		a.patient = patient
		a.method = models.MethodManualSelection
		return stepValidating, nil, nil
	}

	outcome, err := e.identifier.Identify(ctx, a.req.BiometricSample, a.req.SearchCriteria)
	if err != nil {
		return "", nil, err
	}
	switch outcome.Kind {
	case identifymodels.OutcomeNotFound:
		return "", failureResult(models.ReasonPatientNotFound, "no patient matched the provided identification"), nil
	case identifymodels.OutcomeAmbiguous:
		return "", &models.CheckInResult{
			RequiresManualSelection: true,
			AmbiguousMatches:        outcome.Candidates,
		}, nil
	}

	patient, err := e.patients.Get(ctx, outcome.Match.PatientID)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "patient lookup failed")
	}
	a.patient = patient
	if a.req.BiometricSample != nil {
		a.method = models.MethodBiometric
	} else {
		a.method = models.MethodAttributeSearch
	}
	return stepValidating, nil, nil
}

func (e *Engine) validateAppointment(ctx context.Context, a *attempt) (step, *models.CheckInResult, error) {
	now := requestcontext.Now(ctx)
	validation, err := e.appointments.Validate(ctx, a.patient.ID, now)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "appointment validation failed")
	}
	if !validation.Valid {
		detail := validation.Reason
		if detail == "" {
			detail = "no valid appointment for today"
		}
		return "", failureResult(models.ReasonNoValidAppointment, detail), nil
	}
	a.appointment = validation.Appointment
	return stepScreening, nil, nil
}

func (e *Engine) screen(ctx context.Context, a *attempt) (step, *models.CheckInResult, error) {
	decision := e.gate.Assess(a.req.Questionnaire)
	if !decision.Admits() {
		e.recordScreeningStop(ctx, a, decision)
		e.notifyPatient(ctx, a.patient.ID, recommendationsMessage(e.gate.Recommendations(a.req.Questionnaire)))
		issues := make([]string, 0, len(decision.RiskFactors)+1)
		if decision.Reason != "" {
			issues = append(issues, decision.Reason)
		}
		for _, factor := range decision.RiskFactors {
			issues = append(issues, factor.Description)
		}
		return "", &models.CheckInResult{
			Failure: &models.Failure{
				Reason: models.ReasonScreeningFailed,
				Detail: decision.Reason,
				Issues: issues,
			},
		}, nil
	}
	a.screeningDecision = decision
	return stepAdmitting, nil, nil
}

// recordScreeningStop persists the attempt a screening decision kept out of
// the queue, so reception can follow up on rejections and review cases.
func (e *Engine) recordScreeningStop(ctx context.Context, a *attempt, decision screeningmodels.Decision) {
	now := requestcontext.Now(ctx)
	record := &models.CheckInRecord{
		ID:               id.NewCheckInID(),
		PatientID:        a.patient.ID,
		PatientName:      a.patient.FullName,
		AppointmentID:    a.appointment.ID,
		AdmittedAt:       now,
		Method:           a.method,
		ScreeningOutcome: decision.Outcome,
		Status:           screeningStopStatus(decision.Outcome),
		Category:         a.appointment.Category,
		ScheduledAt:      a.appointment.ScheduledAt,
		PatientAge:       ageAt(a.patient.BirthDate, now),
		SpecialNeeds:     a.patient.SpecialNeeds,
	}
	e.persistRecord(ctx, record)
}

// screeningStopStatus maps a non-admitting screening outcome to the record
// status reception triages by.
func screeningStopStatus(outcome screeningmodels.Outcome) models.Status {
	if outcome == screeningmodels.OutcomeRequiresReview {
		return models.StatusRequiresReview
	}
	return models.StatusFailed
}

func (e *Engine) admit(ctx context.Context, a *attempt) (step, *models.CheckInResult, error) {
	now := requestcontext.Now(ctx)
	record := &models.CheckInRecord{
		ID:               id.NewCheckInID(),
		PatientID:        a.patient.ID,
		PatientName:      a.patient.FullName,
		AppointmentID:    a.appointment.ID,
		AdmittedAt:       now,
		Method:           a.method,
		ScreeningOutcome: a.screeningDecision.Outcome,
		Status:           models.StatusCompleted,
		Category:         a.appointment.Category,
		ScheduledAt:      a.appointment.ScheduledAt,
		PatientAge:       ageAt(a.patient.BirthDate, now),
		SpecialNeeds:     a.patient.SpecialNeeds,
	}

	if _, err := e.queue.Admit(ctx, record); err != nil {
		return "", nil, err
	}
	e.persistRecord(ctx, record)
	e.completionSideEffects(ctx, a, record)

	return "", &models.CheckInResult{Success: true, Record: record}, nil
}

// persistRecord writes the admission to the backend store. Persistence
// failure does not undo the admission; the record is queued for offline
// reconciliation instead.
func (e *Engine) persistRecord(ctx context.Context, record *models.CheckInRecord) {
	err := e.store.SaveRecord(ctx, record)
	if err == nil {
		return
	}
	e.logger.WarnContext(ctx, "failed to persist check-in record, queueing for reconciliation",
		"check_in_id", record.ID,
		"error", err,
	)
	payload, merr := json.Marshal(record)
	if merr != nil {
		e.logger.ErrorContext(ctx, "failed to encode record for offline queue", "check_in_id", record.ID, "error", merr)
		return
	}
	if _, qerr := e.offline.Enqueue(ctx, offlinemodels.ItemProgress, payload, offlinemodels.PriorityHigh); qerr != nil {
		e.logger.ErrorContext(ctx, "failed to queue record for reconciliation", "check_in_id", record.ID, "error", qerr)
	}
}

// completionSideEffects fires the post-admission collaborator calls. Any of
// them failing is logged and never reverts the admission.
func (e *Engine) completionSideEffects(ctx context.Context, a *attempt, record *models.CheckInRecord) {
	if e.notifier != nil {
		if err := e.notifier.NotifyStaff(ctx, record); err != nil {
			e.logger.WarnContext(ctx, "staff notification failed, queueing for redelivery", "check_in_id", record.ID, "error", err)
			e.queueNotification(ctx, queuedNotification{Record: record})
		}
	}
	if e.printer != nil && a.req.PrintReceipt {
		if err := e.printer.PrintReceipt(ctx, record); err != nil {
			e.logger.WarnContext(ctx, "receipt printing failed", "check_in_id", record.ID, "error", err)
		}
	}
	confirmation := fmt.Sprintf("You are checked in at position %d. Estimated wait: %d minutes.",
		record.QueuePosition, record.EstimatedWaitMinutes)
	if len(a.screeningDecision.Precautions) > 0 {
		confirmation += " Precautions: " + strings.Join(a.screeningDecision.Precautions, "; ")
	}
	e.notifyPatient(ctx, record.PatientID, confirmation)

	e.publisher.Publish(ctx, analytics.Event{
		Type:      analytics.EventCheckInCompleted,
		DeviceID:  a.req.DeviceID,
		PatientID: record.PatientID,
		Detail: map[string]any{
			"category": record.Category,
			"method":   record.Method,
			"position": record.QueuePosition,
		},
	})
}

func (e *Engine) notifyPatient(ctx context.Context, patientID id.PatientID, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyPatient(ctx, patientID, message); err != nil {
		e.logger.WarnContext(ctx, "patient notification failed, queueing for redelivery", "patient_id", patientID, "error", err)
		e.queueNotification(ctx, queuedNotification{PatientID: patientID, Message: message})
	}
}

// queuedNotification is a delivery the notifier refused at the time it was
// due. A non-nil Record targets staff; otherwise Message goes to the patient.
type queuedNotification struct {
	PatientID id.PatientID          `json:"patient_id,omitempty"`
	Message   string                `json:"message,omitempty"`
	Record    *models.CheckInRecord `json:"record,omitempty"`
}

// queueNotification defers a failed delivery to the next sync cycle.
func (e *Engine) queueNotification(ctx context.Context, n queuedNotification) {
	payload, err := json.Marshal(n)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to encode notification for offline queue", "error", err)
		return
	}
	if _, err := e.offline.Enqueue(ctx, offlinemodels.ItemNotification, payload, offlinemodels.PriorityNormal); err != nil {
		e.logger.ErrorContext(ctx, "failed to queue notification for redelivery", "error", err)
	}
}

// GetQueueStatus returns the live queue snapshot and refreshes the offline
// layer's idea of the current depth.
func (e *Engine) GetQueueStatus(ctx context.Context) *queuemodels.Snapshot {
	snapshot := e.queue.Snapshot(ctx)
	e.offline.SetKnownQueueDepth(snapshot.Depth)
	return snapshot
}

// ProcessNextPatient pops the next patient for service, or nil when the
// queue is empty.
func (e *Engine) ProcessNextPatient(ctx context.Context) *models.CheckInRecord {
	record := e.queue.Next(ctx)
	if record == nil {
		return nil
	}
	if err := e.store.UpdateStatus(ctx, record.ID, models.StatusCompleted); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		e.logger.WarnContext(ctx, "failed to update record after service call", "check_in_id", record.ID, "error", err)
	}
	return record
}

// CancelCheckIn removes a patient's queue entry before service. Cancellation
// does not undo identification or screening; it only releases the position.
func (e *Engine) CancelCheckIn(ctx context.Context, patientID id.PatientID) bool {
	if !e.queue.Remove(ctx, patientID) {
		return false
	}
	e.markCancelled(ctx, patientID)
	e.notifyPatient(ctx, patientID, "Your check-in was cancelled.")
	e.publisher.Publish(ctx, analytics.Event{
		Type:      analytics.EventCheckInCancelled,
		PatientID: patientID,
	})
	return true
}

func (e *Engine) markCancelled(ctx context.Context, patientID id.PatientID) {
	history, err := e.store.ListByPatient(ctx, patientID)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load records for cancellation", "patient_id", patientID, "error", err)
		return
	}
	for _, record := range history {
		// Screening stops and earlier cancellations stay as they are; only
		// the admitted record releases its position.
		if record.Status != models.StatusCompleted {
			continue
		}
		if err := e.store.UpdateStatus(ctx, record.ID, models.StatusCancelled); err != nil {
			e.logger.WarnContext(ctx, "failed to mark record cancelled", "check_in_id", record.ID, "error", err)
		}
		return
	}
}

// reconcileCheckIn replays a provisional offline admission against the live
// queue and backend store during sync.
func (e *Engine) reconcileCheckIn(ctx context.Context, item *offlinemodels.Item) error {
	var record models.CheckInRecord
	if err := json.Unmarshal(item.Payload, &record); err != nil {
		return fmt.Errorf("decode provisional record: %w", err)
	}
	record.Provisional = false

	if _, err := e.queue.Admit(ctx, &record); err != nil {
		// The patient already holds a live entry; the provisional record
		// is reconciled against it rather than admitted twice.
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
	}
	if err := e.store.SaveRecord(ctx, &record); err != nil {
		return fmt.Errorf("persist reconciled record: %w", err)
	}
	return nil
}

// persistQueuedRecord replays a store write that failed at admission time.
// The patient already holds their queue position, so only persistence runs.
func (e *Engine) persistQueuedRecord(ctx context.Context, item *offlinemodels.Item) error {
	var record models.CheckInRecord
	if err := json.Unmarshal(item.Payload, &record); err != nil {
		return fmt.Errorf("decode queued record: %w", err)
	}
	if err := e.store.SaveRecord(ctx, &record); err != nil {
		return fmt.Errorf("persist queued record: %w", err)
	}
	return nil
}

// redeliverNotification replays a notification the notifier rejected when it
// was first due.
func (e *Engine) redeliverNotification(ctx context.Context, item *offlinemodels.Item) error {
	if e.notifier == nil {
		return nil
	}
	var n queuedNotification
	if err := json.Unmarshal(item.Payload, &n); err != nil {
		return fmt.Errorf("decode queued notification: %w", err)
	}
	if n.Record != nil {
		return e.notifier.NotifyStaff(ctx, n.Record)
	}
	return e.notifier.NotifyPatient(ctx, n.PatientID, n.Message)
}

func failureResult(reason models.FailureReason, detail string) *models.CheckInResult {
	return &models.CheckInResult{
		Failure: &models.Failure{Reason: reason, Detail: detail},
	}
}

func recommendationsMessage(recommendations []string) string {
	if len(recommendations) == 0 {
		return "Check-in was not approved by health screening. Please contact the reception desk."
	}
	return "Check-in was not approved by health screening. " + strings.Join(recommendations, " ")
}

func ageAt(birthDate time.Time, now time.Time) int {
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
