package service

import (
	"math"
	"math/rand"
	"time"

	"medkiosk/internal/queue/config"
)

// Predictor estimates minutes until a queued patient at a given position is
// served. The interface is stable so the heuristic can later be replaced by a
// model driven by real historical session durations.
type Predictor interface {
	Predict(position int, avgServiceMinutes float64, now time.Time) int
}

// HeuristicPredictor is the default wait model: linear in queue depth,
// scaled by a time-of-day/day-of-week multiplier, with bounded jitter so the
// kiosk does not display false precision.
type HeuristicPredictor struct {
	cfg  config.Prediction
	rand *rand.Rand
}

// NewHeuristicPredictor builds the default predictor. The rand source is
// injectable so tests pin the seed.
func NewHeuristicPredictor(cfg config.Prediction, src rand.Source) *HeuristicPredictor {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &HeuristicPredictor{cfg: cfg, rand: rand.New(src)}
}

// Predict returns 0 for position 1: the patient is next and waits only for
// the current consultation to finish, which the linear model cannot see.
func (p *HeuristicPredictor) Predict(position int, avgServiceMinutes float64, now time.Time) int {
	if position <= 1 {
		return 0
	}
	if avgServiceMinutes <= 0 {
		avgServiceMinutes = p.cfg.DefaultServiceMinutes
	}

	base := float64(position-1) * (avgServiceMinutes + p.cfg.BufferMinutes)
	estimate := base * p.multiplier(now)

	if p.cfg.JitterFraction > 0 {
		spread := estimate * p.cfg.JitterFraction
		estimate += (p.rand.Float64()*2 - 1) * spread
	}

	minutes := int(math.Round(estimate))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

func (p *HeuristicPredictor) multiplier(now time.Time) float64 {
	m := 1.0
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		m *= p.cfg.WeekendMultiplier
	default:
		for _, h := range p.cfg.PeakHours {
			if now.Hour() == h {
				m *= p.cfg.PeakMultiplier
				break
			}
		}
	}
	return m
}
