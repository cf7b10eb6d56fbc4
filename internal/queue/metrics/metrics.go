package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	QueueDepth           prometheus.Gauge
	AdmissionsTotal      *prometheus.CounterVec
	RemovalsTotal        prometheus.Counter
	PredictedWaitMinutes prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "medkiosk_queue_depth",
			Help: "Current number of patients in the waiting queue",
		}),
		AdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medkiosk_queue_admissions_total",
			Help: "Total queue admissions by visit category",
		}, []string{"category"}),
		RemovalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medkiosk_queue_removals_total",
			Help: "Total queue removals (served or cancelled)",
		}),
		PredictedWaitMinutes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "medkiosk_queue_predicted_wait_minutes",
			Help:    "Distribution of predicted wait minutes at admission time",
			Buckets: []float64{0, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
	}
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) IncrementAdmissions(category string) {
	m.AdmissionsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementRemovals() {
	m.RemovalsTotal.Inc()
}

func (m *Metrics) ObservePredictedWait(minutes int) {
	m.PredictedWaitMinutes.Observe(float64(minutes))
}
