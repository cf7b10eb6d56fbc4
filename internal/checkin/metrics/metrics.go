package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CheckInsTotal  *prometheus.CounterVec
	FlowDurationMs prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CheckInsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medkiosk_checkins_total",
			Help: "Total check-in attempts by terminal outcome",
		}, []string{"outcome"}),
		FlowDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "medkiosk_checkin_flow_duration_ms",
			Help:    "End-to-end duration of check-in attempts in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
}

func (m *Metrics) IncrementCheckIns(outcome string) {
	m.CheckInsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFlowDuration(d time.Duration) {
	m.FlowDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}
