package handler

import (
	"medkiosk/internal/checkin/models"
	identifymodels "medkiosk/internal/identify/models"
	screeningmodels "medkiosk/internal/screening/models"
	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

// CheckInRequest is the HTTP request body for POST /checkin. The device
// identity comes from the bearer token, never from the body.
type CheckInRequest struct {
	BiometricSample   *identifymodels.BiometricSample `json:"biometric_sample,omitempty"`
	SearchCriteria    *identifymodels.SearchCriteria  `json:"search_criteria,omitempty"`
	SelectedPatientID string                          `json:"selected_patient_id,omitempty"`
	Questionnaire     screeningmodels.Questionnaire   `json:"questionnaire"`
	PrintReceipt      bool                            `json:"print_receipt"`

	// Parsed values (populated by Validate)
	parsedPatientID *id.PatientID
}

// Validate parses the optional patient selection and checks that at least
// one identification input is present.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckInRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.SelectedPatientID != "" {
		patientID, err := id.ParsePatientID(r.SelectedPatientID)
		if err != nil {
			return err
		}
		r.parsedPatientID = &patientID
	}
	if r.BiometricSample == nil && r.SearchCriteria == nil && r.parsedPatientID == nil {
		return dErrors.New(dErrors.CodeValidation, "a biometric sample, search criteria, or selected patient is required")
	}
	if r.SearchCriteria != nil {
		if err := r.SearchCriteria.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToDomain builds the engine request for the authenticated device.
func (r *CheckInRequest) ToDomain(deviceID id.DeviceID) *models.CheckInRequest {
	return &models.CheckInRequest{
		DeviceID:          deviceID,
		BiometricSample:   r.BiometricSample,
		SearchCriteria:    r.SearchCriteria,
		SelectedPatientID: r.parsedPatientID,
		Questionnaire:     r.Questionnaire,
		PrintReceipt:      r.PrintReceipt,
	}
}
