// Package models defines identification inputs and outcomes. A PatientMatch
// lives only for the duration of one check-in attempt and is never persisted.
package models

import (
	"strings"
	"time"

	id "medkiosk/pkg/domain"
	dErrors "medkiosk/pkg/domain-errors"
)

// BiometricSample is an opaque capture from the kiosk camera.
type BiometricSample struct {
	Data     []byte    `json:"data"`
	Captured time.Time `json:"captured"`
}

// SearchCriteria are the attributes used for manual lookup when biometric
// matching is unavailable or inconclusive.
type SearchCriteria struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
}

// IsEmpty reports whether no searchable attribute was provided.
func (c SearchCriteria) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.DateOfBirth) == ""
}

// Validate enforces the trust-boundary rules for criteria coming off the wire.
func (c SearchCriteria) Validate() error {
	if c.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one search attribute is required")
	}
	if c.DateOfBirth != "" {
		if _, err := time.Parse("2006-01-02", c.DateOfBirth); err != nil {
			return dErrors.New(dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
		}
	}
	return nil
}

// PatientMatch is one candidate identity with its confidence and the fields
// that matched.
type PatientMatch struct {
	PatientID     id.PatientID `json:"patient_id"`
	FullName      string       `json:"full_name"`
	Confidence    float64      `json:"confidence"`
	MatchedFields []string     `json:"matched_fields,omitempty"`
}

// OutcomeKind distinguishes the three identification results.
type OutcomeKind string

const (
	OutcomeUnique    OutcomeKind = "unique"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeNotFound  OutcomeKind = "not_found"
)

// Outcome is the result of one identification attempt.
//
// Invariant: Kind=unique implies Match != nil; Kind=ambiguous implies
// len(Candidates) > 1.
type Outcome struct {
	Kind       OutcomeKind    `json:"kind"`
	Match      *PatientMatch  `json:"match,omitempty"`
	Candidates []PatientMatch `json:"candidates,omitempty"`
}

func Unique(match PatientMatch) *Outcome {
	return &Outcome{Kind: OutcomeUnique, Match: &match}
}

func Ambiguous(candidates []PatientMatch) *Outcome {
	return &Outcome{Kind: OutcomeAmbiguous, Candidates: candidates}
}

func NotFound() *Outcome {
	return &Outcome{Kind: OutcomeNotFound}
}
