package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Backlog             prometheus.Gauge
	ItemsSyncedTotal    prometheus.Counter
	ItemsFailedTotal    prometheus.Counter
	ItemsDroppedTotal   *prometheus.CounterVec
	SyncCycleDurationMs prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Backlog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "medkiosk_offline_backlog",
			Help: "Number of items waiting in the offline queue",
		}),
		ItemsSyncedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medkiosk_offline_items_synced_total",
			Help: "Total offline items successfully reconciled",
		}),
		ItemsFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medkiosk_offline_items_failed_total",
			Help: "Total failed sync attempts (item retained for retry)",
		}),
		ItemsDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medkiosk_offline_items_dropped_total",
			Help: "Total items dropped from the offline queue by reason",
		}, []string{"reason"}),
		SyncCycleDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "medkiosk_offline_sync_cycle_duration_ms",
			Help:    "Duration of offline sync cycles in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000},
		}),
	}
}

func (m *Metrics) SetBacklog(depth int) {
	m.Backlog.Set(float64(depth))
}

func (m *Metrics) ObserveSyncCycle(synced, failed int, duration time.Duration) {
	m.ItemsSyncedTotal.Add(float64(synced))
	m.ItemsFailedTotal.Add(float64(failed))
	m.SyncCycleDurationMs.Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *Metrics) IncrementDropped(reason string) {
	m.ItemsDroppedTotal.WithLabelValues(reason).Inc()
}
