// Package metrics содержит метрики Prometheus для поиска дублей.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dedup"

const (
	OutcomeDuplicate = "duplicate"
	OutcomeUnique    = "unique"
	OutcomeDisabled  = "disabled"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	detections *prometheus.CounterVec
	candidates prometheus.Histogram
	duration   prometheus.Histogram
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Duplicate detection calls by outcome.",
		}, []string{"outcome"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_checked",
			Help:      "Number of candidate orders compared per detection call.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Wall time of duplicate detection calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.detections, m.candidates, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveDetection учитывает один завершенный вызов детектора.
func (m *Metrics) ObserveDetection(outcome string, candidates int, elapsed time.Duration) {
	m.detections.WithLabelValues(outcome).Inc()
	m.candidates.Observe(float64(candidates))
	m.duration.Observe(elapsed.Seconds())
}
