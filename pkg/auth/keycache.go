package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// HTTPClient abstracts the client used to fetch the JWKS document. The
// standard [http.Client] satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	// DefaultJWKSCacheTTL is how long a fetched key set is served without
	// contacting the identity provider.
	DefaultJWKSCacheTTL = time.Hour

	// DefaultFetchTimeout bounds a single JWKS fetch.
	DefaultFetchTimeout = 5 * time.Second

	// maxJWKSBodySize limits the JWKS response body to 1 MB.
	maxJWKSBodySize = 1 << 20
)

// KeyCacheConfig configures a [KeyCache].
type KeyCacheConfig struct {
	// URL is the JWKS discovery endpoint. Required.
	URL string

	// TTL is the age after which the cached key set is refreshed.
	// Defaults to [DefaultJWKSCacheTTL].
	TTL time.Duration

	// FetchTimeout bounds each fetch. Defaults to [DefaultFetchTimeout].
	FetchTimeout time.Duration

	// HTTPClient performs the fetch. Defaults to an [http.Client] whose
	// timeout equals FetchTimeout.
	HTTPClient HTTPClient

	// Logger receives stale-fallback warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// keyCacheEntry is the single cached key set and when it was fetched.
type keyCacheEntry struct {
	keys      KeySet
	fetchedAt time.Time
}

// KeyCache is a read-through cache of one identity provider's signing
// keys. It holds a single entry for its URL. When the entry is older than
// the TTL a refresh is attempted; if the refresh fails and an entry
// exists, the stale keys are served and a warning is logged. With no
// entry at all the failure is returned.
//
// Concurrent refreshes are collapsed into one request. The entry is
// replaced only after a successful fetch, so readers always see either
// the old or the new key set.
//
// KeyCache is safe for concurrent use by multiple goroutines.
type KeyCache struct {
	url          string
	ttl          time.Duration
	fetchTimeout time.Duration
	client       HTTPClient
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer

	// now is replaceable in tests.
	now func() time.Time

	mu    sync.RWMutex
	entry *keyCacheEntry

	group singleflight.Group
}

// NewKeyCache creates a KeyCache. Zero-valued optional fields in cfg are
// replaced by their defaults.
func NewKeyCache(cfg KeyCacheConfig) *KeyCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultJWKSCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &KeyCache{
		url:          cfg.URL,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		tracer:       tracerFrom(cfg.TracerProvider),
		now:          time.Now,
	}
}

// URL returns the discovery endpoint this cache serves.
func (c *KeyCache) URL() string {
	return c.url
}

// Keys returns the identity provider's signing keys. A fresh cached set
// is returned without network I/O. Otherwise the set is fetched; on
// failure the stale set is returned if one exists. When nothing has ever
// been fetched successfully, the error is a *sserr.Error with code
// [sserr.CodeInternal].
//
// A caller whose ctx is done stops waiting and gets an error wrapping
// ctx.Err(); the shared fetch keeps running for the remaining callers.
func (c *KeyCache) Keys(ctx context.Context) (KeySet, error) {
	if entry := c.current(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.keys, nil
	}

	ch := c.group.DoChan(c.url, func() (any, error) {
		// Another caller may have refreshed while this one waited.
		if entry := c.current(); entry != nil && c.now().Sub(entry.fetchedAt) < c.ttl {
			return entry.keys, nil
		}
		return c.refresh(ctx)
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(KeySet), nil
		}
		err = res.Err
	case <-ctx.Done():
		return KeySet{}, sserr.Wrap(ctx.Err(), sserr.CodeInternal, "auth: signing keys unavailable")
	}

	if entry := c.current(); entry != nil {
		c.metrics.observeStale()
		c.logger.WarnContext(ctx, "auth: JWKS refresh failed, serving stale keys",
			"url", c.url,
			"reason", err.Error(),
			"age", c.now().Sub(entry.fetchedAt).Round(time.Second).String(),
			"key_count", entry.keys.Len(),
		)
		return entry.keys, nil
	}

	return KeySet{}, sserr.Wrap(err, sserr.CodeInternal, "auth: signing keys unavailable")
}

// Invalidate marks the cached key set as stale so the next call to
// [KeyCache.Keys] refetches. The entry is kept as a fallback.
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		c.entry = &keyCacheEntry{keys: c.entry.keys}
	}
}

// FetchedAt returns when the cached key set was fetched, and false if
// nothing is cached.
func (c *KeyCache) FetchedAt() (time.Time, bool) {
	entry := c.current()
	if entry == nil {
		return time.Time{}, false
	}
	return entry.fetchedAt, true
}

func (c *KeyCache) current() *keyCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// refresh fetches the key set and replaces the entry on success. The
// fetch is detached from the caller's cancellation because its result is
// shared with every waiting caller; it is bounded by fetchTimeout.
func (c *KeyCache) refresh(ctx context.Context) (KeySet, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	ctx, span := startSpan(ctx, c.tracer, "auth.FetchKeys")
	defer span.End()
	span.SetAttributes(attribute.String("auth.jwks_url", c.url))

	start := time.Now()
	keys, err := c.fetch(ctx)
	c.metrics.observeFetch(err, time.Since(start))
	if err != nil {
		finishSpan(span, err)
		return KeySet{}, err
	}
	span.SetAttributes(attribute.Int("auth.key_count", keys.Len()))

	c.mu.Lock()
	c.entry = &keyCacheEntry{keys: keys, fetchedAt: c.now()}
	c.mu.Unlock()

	return keys, nil
}

// fetch performs the GET and parses the body.
func (c *KeyCache) fetch(ctx context.Context) (KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return KeySet{}, fmt.Errorf("auth: failed to create JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return KeySet{}, fmt.Errorf("auth: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return KeySet{}, fmt.Errorf("auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return KeySet{}, fmt.Errorf("auth: failed to read JWKS response: %w", err)
	}

	return parseKeySet(body)
}
