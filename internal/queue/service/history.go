package service

import "sync"

// serviceHistory keeps a bounded rolling window of completed consultation
// durations and serves their average to the predictor.
type serviceHistory struct {
	mu      sync.Mutex
	window  int
	minutes []float64
}

func newServiceHistory(window int) *serviceHistory {
	if window <= 0 {
		window = 1
	}
	return &serviceHistory{window: window}
}

func (h *serviceHistory) record(minutes float64) {
	if minutes <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.minutes = append(h.minutes, minutes)
	if len(h.minutes) > h.window {
		h.minutes = h.minutes[len(h.minutes)-h.window:]
	}
}

// average returns 0 when no history exists; callers substitute the
// configured default.
func (h *serviceHistory) average() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.minutes) == 0 {
		return 0
	}
	var sum float64
	for _, m := range h.minutes {
		sum += m
	}
	return sum / float64(len(h.minutes))
}
