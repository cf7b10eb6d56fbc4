// Package models defines the health screening questionnaire and the
// classification produced from it.
package models

// Questionnaire carries the answers collected at the kiosk. It is immutable
// input to one assessment.
type Questionnaire struct {
	// Symptoms are normalized lowercase symptom codes, e.g. "cough",
	// "chest_pain". Empty means the patient reported none.
	Symptoms []string `json:"symptoms"`
	// TemperatureCelsius is the measured body temperature. Zero means not
	// measured; not-measured never triggers the fever rule.
	TemperatureCelsius float64 `json:"temperature_celsius"`
	// RecentExposure reports contact with a confirmed communicable case.
	RecentExposure bool `json:"recent_exposure"`
	// Vaccinated reports an up-to-date vaccination status.
	Vaccinated bool `json:"vaccinated"`
}

// Severity grades a risk factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFactor is one weighted contribution to the overall assessment.
type RiskFactor struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// RiskAssessment is the ordered set of factors derived from a questionnaire.
// It is derived, not stored; it exists only to decide the screening outcome.
type RiskAssessment struct {
	Factors []RiskFactor `json:"factors"`
}

// HasSeverity reports whether any factor carries the given severity.
func (a RiskAssessment) HasSeverity(s Severity) bool {
	for _, f := range a.Factors {
		if f.Severity == s {
			return true
		}
	}
	return false
}

// Outcome is the screening classification.
type Outcome string

const (
	OutcomeApproved            Outcome = "approved"
	OutcomeConditionalApproval Outcome = "conditional_approval"
	OutcomeRequiresReview      Outcome = "requires_review"
	OutcomeRejected            Outcome = "rejected"
)

// Decision is the result of assessing one questionnaire.
type Decision struct {
	Outcome     Outcome      `json:"outcome"`
	Reason      string       `json:"reason,omitempty"`
	Precautions []string     `json:"precautions,omitempty"`
	RiskFactors []RiskFactor `json:"risk_factors,omitempty"`
}

// Admits reports whether the decision lets the patient continue to admission.
func (d Decision) Admits() bool {
	return d.Outcome == OutcomeApproved || d.Outcome == OutcomeConditionalApproval
}
