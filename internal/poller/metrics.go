package poller

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeStale   = "stale"
	outcomeSkipped = "skipped"
)

type MetricsConfig struct {
	Namespace string
	Buckets   []float64
}

// Metrics is safe to use as a nil pointer, which records nothing.
type Metrics struct {
	duration  *prometheus.HistogramVec
	polls     *prometheus.CounterVec
	services  prometheus.Gauge
	malformed prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer, config MetricsConfig) (*Metrics, error) {
	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000}
	}

	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "poll_duration_milliseconds",
			Help:      "Time taken by one fetch-then-merge cycle.",
			Buckets:   buckets,
		}, []string{"failed"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "poll_total",
			Help:      "Polls by outcome.",
		}, []string{"outcome"}),
		services: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "services",
			Help:      "Services currently held.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "malformed_entities_total",
			Help:      "Snapshot records skipped because they could not be normalized.",
		}),
	}

	for _, c := range []prometheus.Collector{m.duration, m.polls, m.services, m.malformed} {
		err := registry.Register(c)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) observePoll(outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.polls.WithLabelValues(outcome).Inc()

	if outcome == outcomeSuccess || outcome == outcomeFailure {
		durationMilli := float64(d/time.Millisecond) + float64(d%time.Millisecond)/float64(time.Millisecond)
		m.duration.WithLabelValues(fmt.Sprintf("%v", outcome == outcomeFailure)).Observe(durationMilli)
	}
}

func (m *Metrics) setServices(n int) {
	if m == nil {
		return
	}

	m.services.Set(float64(n))
}

func (m *Metrics) addMalformed(n int) {
	if m == nil || n == 0 {
		return
	}

	m.malformed.Add(float64(n))
}
