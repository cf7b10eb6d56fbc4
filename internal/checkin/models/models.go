// Package models defines the check-in aggregate and the request/result types
// exposed to the kiosk.
package models

import (
	"time"

	identifymodels "medkiosk/internal/identify/models"
	screeningmodels "medkiosk/internal/screening/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

// Category classifies a visit for priority purposes.
type Category string

const (
	CategoryEmergency Category = "emergency"
	CategoryFollowUp  Category = "follow_up"
	CategoryFirstTime Category = "first_time"
	CategoryRoutine   Category = "routine"
)

// IdentificationMethod records how the patient was resolved.
type IdentificationMethod string

const (
	MethodBiometric       IdentificationMethod = "biometric"
	MethodAttributeSearch IdentificationMethod = "attribute_search"
	MethodManualSelection IdentificationMethod = "manual_selection"
)

// Status is the lifecycle state of a check-in record.
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusRequiresReview Status = "requires_review"
)

// CheckInRequest is the immutable input to one check-in attempt.
type CheckInRequest struct {
	DeviceID id.DeviceID `json:"device_id" validate:"required"`

	// BiometricSample is optional; without it identification falls back to
	// SearchCriteria.
	BiometricSample *identifymodels.BiometricSample `json:"biometric_sample,omitempty"`
	SearchCriteria  *identifymodels.SearchCriteria  `json:"search_criteria,omitempty"`

	// SelectedPatientID resolves a previous ambiguous outcome by explicit
	// operator selection.
	SelectedPatientID *id.PatientID `json:"selected_patient_id,omitempty"`

	Questionnaire screeningmodels.Questionnaire `json:"questionnaire"`

	PrintReceipt bool `json:"print_receipt"`
}

// Validate enforces the trust-boundary rules on a request off the wire.
func (r CheckInRequest) Validate() error {
	if r.DeviceID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "device_id is required")
	}
	if r.BiometricSample == nil && r.SearchCriteria == nil && r.SelectedPatientID == nil {
		return dErrors.New(dErrors.CodeValidation, "a biometric sample, search criteria, or selected patient is required")
	}
	return nil
}

// CheckInRecord is created only on successful admission and updated by the
// queue manager as positions shift.
//
// Invariants:
//   - A patient has at most one active (non-terminal) record at a time.
//   - After Status becomes completed or cancelled, only QueuePosition and
//     EstimatedWaitMinutes may change (position/wait refresh).
type CheckInRecord struct {
	ID            id.CheckInID         `json:"id"`
	PatientID     id.PatientID         `json:"patient_id"`
	PatientName   string               `json:"patient_name,omitempty"`
	AppointmentID id.AppointmentID     `json:"appointment_id"`
	AdmittedAt    time.Time            `json:"admitted_at"`
	Method        IdentificationMethod `json:"method"`

	ScreeningOutcome screeningmodels.Outcome `json:"screening_outcome"`
	Status           Status                  `json:"status"`

	// Priority inputs captured at admission time.
	Category     Category  `json:"category"`
	ScheduledAt  time.Time `json:"scheduled_at,omitempty"`
	PatientAge   int       `json:"patient_age,omitempty"`
	SpecialNeeds bool      `json:"special_needs,omitempty"`

	QueuePosition        int  `json:"queue_position"`
	EstimatedWaitMinutes int  `json:"estimated_wait_minutes"`
	Provisional          bool `json:"provisional,omitempty"`
}

// FailureReason narrows why an attempt terminated without admission.
type FailureReason string

const (
	ReasonPatientNotFound    FailureReason = "patient_not_found"
	ReasonNoValidAppointment FailureReason = "no_valid_appointment"
	ReasonScreeningFailed    FailureReason = "health_screening_failed"
	ReasonOfflineUnvalidated FailureReason = "offline_validation_failed"
	ReasonInternal           FailureReason = "internal"
)

// Failure carries the terminal failure detail the kiosk renders.
type Failure struct {
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
	Issues []string      `json:"issues,omitempty"`
}

// CheckInResult is the terminal outcome of one attempt.
type CheckInResult struct {
	Success bool           `json:"success"`
	Record  *CheckInRecord `json:"record,omitempty"`

	// RequiresManualSelection is set with the candidate list when
	// identification was ambiguous.
	RequiresManualSelection bool                          `json:"requires_manual_selection,omitempty"`
	AmbiguousMatches        []identifymodels.PatientMatch `json:"ambiguous_matches,omitempty"`

	Failure *Failure `json:"failure,omitempty"`

	// Offline marks a provisional admission accepted while disconnected.
	Offline bool `json:"offline,omitempty"`
}
