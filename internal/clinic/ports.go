// Package clinic defines the narrow contracts of the external collaborators
// the admission core consumes. None of them are reimplemented here; adapters
// are wired in at construction time and faked in tests.
package clinic

import (
	"context"
	"time"

	checkinmodels "medkiosk/internal/checkin/models"
	id "medkiosk/pkg/domain"
)

// Appointment is the slice of appointment data the core needs for
// eligibility and priority.
type Appointment struct {
	ID                      id.AppointmentID       `json:"id"`
	PatientID               id.PatientID           `json:"patient_id"`
	ScheduledAt             time.Time              `json:"scheduled_at"`
	Category                checkinmodels.Category `json:"category"`
	EstimatedServiceMinutes int                    `json:"estimated_service_minutes"`
}

// Validation is the appointment service's eligibility verdict.
type Validation struct {
	Valid       bool         `json:"valid"`
	Appointment *Appointment `json:"appointment,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// AppointmentService validates that a patient has an appointment for a date.
type AppointmentService interface {
	Validate(ctx context.Context, patientID id.PatientID, date time.Time) (*Validation, error)
}

// Patient is the demographic slice used for priority and messaging.
type Patient struct {
	ID           id.PatientID `json:"id"`
	FullName     string       `json:"full_name"`
	BirthDate    time.Time    `json:"birth_date"`
	Phone        string       `json:"phone,omitempty"`
	SpecialNeeds bool         `json:"special_needs"`
}

// PatientService fetches patient demographics.
type PatientService interface {
	Get(ctx context.Context, patientID id.PatientID) (*Patient, error)
}

// NotificationService delivers staff and patient messages. Delivery
// mechanics (push, SMS, pager) are outside the core.
type NotificationService interface {
	NotifyStaff(ctx context.Context, record *checkinmodels.CheckInRecord) error
	NotifyPatient(ctx context.Context, patientID id.PatientID, message string) error
}

// PrinterService prints the admission receipt at the kiosk.
type PrinterService interface {
	PrintReceipt(ctx context.Context, record *checkinmodels.CheckInRecord) error
}

// ConnectivityProbe reports whether the device currently has a network path
// to the clinic backend.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}
