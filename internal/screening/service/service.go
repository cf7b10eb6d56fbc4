// Package service implements the health screening gate: the risk
// classification step between identification and admission.
package service

import (
	"fmt"
	"log/slog"
	"slices"

	"medkiosk/internal/screening/config"
	"medkiosk/internal/screening/models"
	pstrings "medkiosk/pkg/platform/strings"
)

// Gate classifies a questionnaire into a screening decision. It is pure:
// no I/O, no stored state, so concurrent use needs no locking.
type Gate struct {
	cfg    config.Config
	logger *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func New(cfg config.Config, opts ...Option) *Gate {
	g := &Gate{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Assess applies the screening rules in order; the first matching rule wins.
//
//  1. Hard disqualifiers reject outright.
//  2. Remaining answers build a weighted risk assessment.
//  3. Any high factor requires manual review.
//  4. Any medium factor approves conditionally with precautions.
//  5. Otherwise approved.
func (g *Gate) Assess(q models.Questionnaire) models.Decision {
	// Kiosk input: symptoms arrive free-form and may repeat or carry
	// stray whitespace.
	q.Symptoms = pstrings.DedupeAndTrimLower(q.Symptoms)

	if reason, ok := g.hardDisqualifier(q); ok {
		return models.Decision{Outcome: models.OutcomeRejected, Reason: reason}
	}

	assessment := g.assessRisk(q)

	if assessment.HasSeverity(models.SeverityHigh) {
		return models.Decision{
			Outcome:     models.OutcomeRequiresReview,
			Reason:      "high risk factors require clinical review",
			RiskFactors: assessment.Factors,
		}
	}

	if assessment.HasSeverity(models.SeverityMedium) {
		return models.Decision{
			Outcome:     models.OutcomeConditionalApproval,
			Reason:      "admitted with precautions",
			Precautions: g.precautions(assessment),
			RiskFactors: assessment.Factors,
		}
	}

	return models.Decision{
		Outcome:     models.OutcomeApproved,
		RiskFactors: assessment.Factors,
	}
}

// hardDisqualifier returns the rejection reason for answers that never reach
// risk weighting.
func (g *Gate) hardDisqualifier(q models.Questionnaire) (string, bool) {
	for _, symptom := range q.Symptoms {
		if slices.Contains(g.cfg.HighRiskSymptoms, symptom) {
			return fmt.Sprintf("high-risk symptom reported: %s", symptom), true
		}
		if slices.Contains(g.cfg.CommunicableSymptoms, symptom) {
			return fmt.Sprintf("communicable disease symptom reported: %s", symptom), true
		}
	}
	if q.TemperatureCelsius >= g.cfg.RejectTemperatureCelsius {
		return fmt.Sprintf("temperature %.1f°C at or above %.1f°C threshold",
			q.TemperatureCelsius, g.cfg.RejectTemperatureCelsius), true
	}
	return "", false
}

// assessRisk weights the remaining answers. Elevated temperature and
// high-risk symptoms never appear here; step 1 already filtered them, so a
// high factor can only show up if that rule set evolves.
func (g *Gate) assessRisk(q models.Questionnaire) models.RiskAssessment {
	var factors []models.RiskFactor

	if q.RecentExposure {
		factors = append(factors, models.RiskFactor{
			Type:        "exposure",
			Severity:    models.SeverityMedium,
			Description: "recent contact with a confirmed communicable case",
		})
	}
	if !q.Vaccinated {
		factors = append(factors, models.RiskFactor{
			Type:        "unvaccinated",
			Severity:    models.SeverityLow,
			Description: "vaccination status not up to date",
		})
	}
	if len(q.Symptoms) > 0 {
		factors = append(factors, models.RiskFactor{
			Type:        "general_symptoms",
			Severity:    models.SeverityLow,
			Description: fmt.Sprintf("general symptoms reported: %v", q.Symptoms),
		})
	}

	return models.RiskAssessment{Factors: factors}
}

func (g *Gate) precautions(assessment models.RiskAssessment) []string {
	var precautions []string
	for _, f := range assessment.Factors {
		switch f.Type {
		case "exposure":
			precautions = append(precautions, "wear a mask in the waiting area")
			precautions = append(precautions, "keep distance from other patients")
		case "general_symptoms":
			precautions = append(precautions, "notify staff if symptoms worsen while waiting")
		}
	}
	return precautions
}

// Recommendations generates patient-facing guidance independent of the
// decision. It is messaging only and never changes the outcome.
func (g *Gate) Recommendations(q models.Questionnaire) []string {
	var recs []string
	if q.TemperatureCelsius >= g.cfg.RejectTemperatureCelsius {
		recs = append(recs, "return once you have been fever-free for 24 hours")
	}
	if q.RecentExposure {
		recs = append(recs, "consider self-isolating until symptoms can be ruled out")
	}
	if !q.Vaccinated {
		recs = append(recs, "ask staff about catching up on recommended vaccinations")
	}
	for _, symptom := range q.Symptoms {
		if slices.Contains(g.cfg.HighRiskSymptoms, symptom) {
			recs = append(recs, "seek emergency care immediately rather than waiting in the clinic queue")
			break
		}
	}
	return recs
}
