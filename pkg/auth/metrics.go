package auth

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for authentication outcomes and
// key discovery. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	staleServed   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. If reg
// is nil, [prometheus.DefaultRegisterer] is used. Collectors that are
// already registered (e.g., a second Authenticator in the same process)
// are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "requests_total",
		Help:      "Authentication decisions by outcome and reason code.",
	}, []string{"outcome", "reason"})

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "jwks_fetches_total",
		Help:      "Key discovery fetches by result.",
	}, []string{"result"})

	fetchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "auth",
		Name:      "jwks_fetch_duration_seconds",
		Help:      "Latency of key discovery fetches.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	staleServed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "jwks_stale_served_total",
		Help:      "Times stale keys were served after a failed refresh.",
	})

	m := &Metrics{}
	var err error
	if m.requests, err = registerCollector(reg, requests); err != nil {
		return nil, err
	}
	if m.fetches, err = registerCollector(reg, fetches); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = registerCollector(reg, fetchDuration); err != nil {
		return nil, err
	}
	if m.staleServed, err = registerCollector(reg, staleServed); err != nil {
		return nil, err
	}
	return m, nil
}

// registerCollector registers c, returning the existing collector when an
// identical one is already registered.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeAccepted() {
	if m == nil {
		return
	}
	m.requests.WithLabelValues("accepted", "").Inc()
}

func (m *Metrics) observeRejected(reason Reason) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues("rejected", string(reason)).Inc()
}

func (m *Metrics) observeFetch(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.staleServed.Inc()
}
