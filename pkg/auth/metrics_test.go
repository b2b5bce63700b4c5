package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.observeAccepted()
	m.observeRejected(ReasonKIDNotFound)
	m.observeFetch(nil, 10*time.Millisecond)
	m.observeFetch(errors.New("boom"), time.Millisecond)
	m.observeStale()

	count, err := promtestutil.GatherAndCount(reg,
		"auth_requests_total",
		"auth_jwks_fetches_total",
		"auth_jwks_fetch_duration_seconds",
		"auth_jwks_stale_served_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.requests.WithLabelValues("rejected", "kid_not_found")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.fetches.WithLabelValues("failure")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.staleServed))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	first.observeAccepted()
	second.observeAccepted()
	assert.Equal(t, float64(2), promtestutil.ToFloat64(first.requests.WithLabelValues("accepted", "")))
}

func TestNewMetrics_ConflictingCollector(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auth_jwks_stale_served_total",
		Help: "Something else entirely.",
	}))

	_, err := NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeAccepted()
		m.observeRejected(ReasonEmptyToken)
		m.observeFetch(nil, time.Second)
		m.observeStale()
	})
}
