package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-cognito-auth/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestKeyCache(t *testing.T, idp *testutil.IdP, mutate ...func(*KeyCacheConfig)) (*KeyCache, *fakeClock) {
	t.Helper()
	logger, _ := testutil.CaptureLogger(t)
	cfg := KeyCacheConfig{
		URL:          idp.JWKSURL(),
		TTL:          time.Hour,
		FetchTimeout: 2 * time.Second,
		Logger:       logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c := NewKeyCache(cfg)
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestNewKeyCache_Defaults(t *testing.T) {
	t.Parallel()
	c := NewKeyCache(KeyCacheConfig{URL: "https://example.com/jwks.json"})
	assert.Equal(t, DefaultJWKSCacheTTL, c.ttl)
	assert.Equal(t, DefaultFetchTimeout, c.fetchTimeout)
	assert.NotNil(t, c.client)
	assert.NotNil(t, c.logger)
	assert.Equal(t, "https://example.com/jwks.json", c.URL())

	_, ok := c.FetchedAt()
	assert.False(t, ok)
}

func TestKeyCache_FreshEntryServedWithoutFetch(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	c, clock := newTestKeyCache(t, idp)
	ctx := context.Background()

	first, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testutil.IdPDefaultKID}, first.KeyIDs())

	clock.Advance(59 * time.Minute)
	second, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, idp.Fetches())
}

func TestKeyCache_RefreshesAfterTTL(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	c, clock := newTestKeyCache(t, idp)
	ctx := context.Background()

	_, err := c.Keys(ctx)
	require.NoError(t, err)

	idp.AddRSAKey(t, "rotated")
	clock.Advance(time.Hour)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idp.Fetches())
	assert.ElementsMatch(t, []string{testutil.IdPDefaultKID, "rotated"}, keys.KeyIDs())

	fetchedAt, ok := c.FetchedAt()
	require.True(t, ok)
	assert.Equal(t, clock.Now(), fetchedAt)
}

func TestKeyCache_ServesStaleKeysWhenRefreshFails(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	logger, logs := testutil.CaptureLogger(t)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	c, clock := newTestKeyCache(t, idp, func(cfg *KeyCacheConfig) {
		cfg.Logger = logger
		cfg.Metrics = metrics
	})
	ctx := context.Background()

	original, err := c.Keys(ctx)
	require.NoError(t, err)
	fetchedAt, _ := c.FetchedAt()

	idp.SetFailing(true)
	clock.Advance(2 * time.Hour)

	stale, err := c.Keys(ctx)
	require.NoError(t, err, "stale keys must be served when a refresh fails")
	assert.Equal(t, original, stale)
	assert.Equal(t, 2, idp.Fetches())

	// The failed refresh does not reset the entry's age.
	after, _ := c.FetchedAt()
	assert.Equal(t, fetchedAt, after)

	assert.Contains(t, logs.String(), "serving stale keys")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.staleServed))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.fetches.WithLabelValues("failure")))

	// Every later call retries until a refresh succeeds.
	_, err = c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, idp.Fetches())

	idp.SetFailing(false)
	_, err = c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, idp.Fetches())
	after, _ = c.FetchedAt()
	assert.Equal(t, clock.Now(), after)
}

func TestKeyCache_ColdStartFailureReturnsError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*testutil.IdP)
	}{
		{"unavailable", func(p *testutil.IdP) { p.SetFailing(true) }},
		{"not found", func(p *testutil.IdP) { p.SetResponse(http.StatusNotFound, "") }},
		{"html body", func(p *testutil.IdP) { p.SetResponse(http.StatusOK, "<html></html>") }},
		{"no keys array", func(p *testutil.IdP) { p.SetResponse(http.StatusOK, `{"data":[]}`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idp := testutil.NewIdP(t)
			tt.setup(idp)
			c, _ := newTestKeyCache(t, idp)

			_, err := c.Keys(context.Background())
			testutil.RequireErrorCode(t, err, sserr.CodeInternal)

			_, ok := c.FetchedAt()
			assert.False(t, ok)
		})
	}
}

func TestKeyCache_UnreachableEndpoint(t *testing.T) {
	t.Parallel()
	c := NewKeyCache(KeyCacheConfig{
		URL:          "http://127.0.0.1:1/.well-known/jwks.json",
		FetchTimeout: time.Second,
	})

	_, err := c.Keys(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
}

func TestKeyCache_FetchTimeout(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	idp.SetDelay(2 * time.Second)
	c, _ := newTestKeyCache(t, idp, func(cfg *KeyCacheConfig) {
		cfg.FetchTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	_, err := c.Keys(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.Less(t, time.Since(start), time.Second)
}

func TestKeyCache_ConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	idp.SetDelay(100 * time.Millisecond)
	c, _ := newTestKeyCache(t, idp)

	const callers = 20
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			keys, err := c.Keys(context.Background())
			if err == nil && keys.Len() != 1 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, idp.Fetches())
}

func TestKeyCache_FetchSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	idp.SetDelay(100 * time.Millisecond)
	c, _ := newTestKeyCache(t, idp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Keys(ctx)
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.ErrorIs(t, err, context.Canceled)

	// The detached fetch still populates the cache.
	require.Eventually(t, func() bool {
		_, ok := c.FetchedAt()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	keys, err := c.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, keys.Len())
	assert.Equal(t, 1, idp.Fetches())
}

func TestKeyCache_WaiterLeavesHangingFetch(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	idp.SetDelay(time.Second)
	c, _ := newTestKeyCache(t, idp)

	// The first caller starts the fetch and waits for it.
	done := make(chan error, 1)
	go func() {
		_, err := c.Keys(context.Background())
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Keys(ctx)
	elapsed := time.Since(start)

	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 500*time.Millisecond)

	require.NoError(t, <-done)
	assert.Equal(t, 1, idp.Fetches())
}

func TestKeyCache_Invalidate(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	c, _ := newTestKeyCache(t, idp)
	ctx := context.Background()

	// Invalidate on an empty cache is a no-op.
	c.Invalidate()

	_, err := c.Keys(ctx)
	require.NoError(t, err)

	idp.AddECKey(t, "new-ec")
	c.Invalidate()

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idp.Fetches())
	_, ok := keys.Lookup("new-ec")
	assert.True(t, ok)
}

func TestKeyCache_InvalidateKeepsFallback(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	c, _ := newTestKeyCache(t, idp)
	ctx := context.Background()

	_, err := c.Keys(ctx)
	require.NoError(t, err)

	c.Invalidate()
	idp.SetFailing(true)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, keys.Len())
}

func TestKeyCache_StaleWarningOmitsKeyMaterial(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	logger, logs := testutil.CaptureLogger(t)
	c, clock := newTestKeyCache(t, idp, func(cfg *KeyCacheConfig) { cfg.Logger = logger })

	keys, err := c.Keys(context.Background())
	require.NoError(t, err)

	idp.SetFailing(true)
	clock.Advance(2 * time.Hour)
	_, err = c.Keys(context.Background())
	require.NoError(t, err)

	jwk, _ := keys.Lookup(testutil.IdPDefaultKID)
	assert.False(t, strings.Contains(logs.String(), jwk.N), "log must not contain key material")
	assert.Contains(t, logs.String(), idp.JWKSURL())
}
