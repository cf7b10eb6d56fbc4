// Package config holds the queue priority and prediction tunables. The shape
// of the priority formula is contract (category dominates, then delay, then
// demographic bonuses, then a fairness term); the coefficients are
// operational choices and therefore configurable.
package config

import (
	checkinmodels "medkiosk/internal/checkin/models"
)

// Weights parameterizes the priority formula. Higher priority is served
// sooner.
type Weights struct {
	// CategoryBase is the dominant term.
	CategoryBase map[checkinmodels.Category]float64

	// DelayBonusPerMinute accrues for every minute past the scheduled time,
	// capped at DelayBonusCap.
	DelayBonusPerMinute float64
	DelayBonusCap       float64

	// ElderlyBonus applies from ElderlyAge up.
	ElderlyBonus float64
	ElderlyAge   int

	// SpecialNeedsBonus is a flat accessibility bonus.
	SpecialNeedsBonus float64

	// WaitingBonusPerMinute is the uncapped fairness term: nobody waits
	// indefinitely regardless of category.
	WaitingBonusPerMinute float64
}

// Prediction parameterizes the wait-time heuristic.
type Prediction struct {
	// DefaultServiceMinutes seeds the average before any history exists.
	DefaultServiceMinutes float64
	// BufferMinutes is the fixed inter-patient changeover time.
	BufferMinutes float64
	// PeakMultiplier scales estimates up during peak hours.
	PeakMultiplier float64
	// WeekendMultiplier scales estimates down on weekends.
	WeekendMultiplier float64
	// PeakHours are the local clock hours treated as peak.
	PeakHours []int
	// JitterFraction bounds the random spread applied to avoid false
	// precision (0.1 = ±10%). Zero disables jitter.
	JitterFraction float64
	// HistoryWindow bounds how many completed service durations feed the
	// rolling average.
	HistoryWindow int
}

// Config is the queue manager configuration.
type Config struct {
	Weights    Weights
	Prediction Prediction
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			CategoryBase: map[checkinmodels.Category]float64{
				checkinmodels.CategoryEmergency: 1000,
				checkinmodels.CategoryFollowUp:  600,
				checkinmodels.CategoryFirstTime: 400,
				checkinmodels.CategoryRoutine:   200,
			},
			DelayBonusPerMinute:   2.0,
			DelayBonusCap:         240,
			ElderlyBonus:          150,
			ElderlyAge:            65,
			SpecialNeedsBonus:     120,
			WaitingBonusPerMinute: 1.5,
		},
		Prediction: Prediction{
			DefaultServiceMinutes: 15,
			BufferMinutes:         3,
			PeakMultiplier:        1.3,
			WeekendMultiplier:     0.8,
			PeakHours:             []int{9, 10, 11, 14, 15},
			JitterFraction:        0.1,
			HistoryWindow:         50,
		},
	}
}
