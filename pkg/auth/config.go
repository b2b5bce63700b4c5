package auth

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// Config configures an [Authenticator] for one Cognito user pool. It
// carries tags for the pkg/config loader:
//
//	cfg := config.MustLoad[auth.Config](config.New().WithEnvPrefix("AUTH"))
//	cfg.Logger = logger
//	authn, err := auth.NewAuthenticator(cfg)
type Config struct {
	// Region is the AWS region of the user pool (e.g., "us-east-1").
	Region string `json:"region" yaml:"region" env:"REGION" required:"true"`

	// UserPoolID is the Cognito user pool ID (e.g., "us-east-1_AbCdEf123").
	UserPoolID string `json:"user_pool_id" yaml:"user_pool_id" env:"USER_POOL_ID" required:"true"`

	// JWKSURL overrides the discovery URL derived from Region and
	// UserPoolID. The issuer is always derived from Region and UserPoolID.
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url" env:"JWKS_URL"`

	// JWKSCacheTTL is how long fetched keys are served before a refresh.
	// Defaults to 1 hour.
	JWKSCacheTTL time.Duration `json:"jwks_cache_ttl" yaml:"jwks_cache_ttl" env:"JWKS_CACHE_TTL" envDefault:"1h"`

	// FetchTimeout bounds each JWKS fetch. Defaults to 5 seconds.
	FetchTimeout time.Duration `json:"jwks_fetch_timeout" yaml:"jwks_fetch_timeout" env:"JWKS_FETCH_TIMEOUT" envDefault:"5s"`

	// ClockSkew is the leeway applied to time-based claims. Defaults to 0.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW"`

	// RequireUUIDSubject rejects tokens whose "sub" is not a UUID.
	// Cognito always issues UUID subjects. Defaults to true.
	RequireUUIDSubject bool `json:"require_uuid_subject" yaml:"require_uuid_subject" env:"REQUIRE_UUID_SUBJECT" envDefault:"true"`

	// HTTPClient fetches the JWKS. If nil, an [http.Client] with
	// FetchTimeout is used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`

	// Logger receives rejection and fallback logs. If nil, slog.Default()
	// is used.
	Logger *slog.Logger `json:"-" yaml:"-"`

	// Metrics is optional; see [NewMetrics].
	Metrics *Metrics `json:"-" yaml:"-"`

	// TracerProvider creates the auth spans. If nil, the global
	// OpenTelemetry provider is used.
	TracerProvider trace.TracerProvider `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with defaults filled in. Region and
// UserPoolID must still be set.
func DefaultConfig() Config {
	return Config{
		JWKSCacheTTL:       DefaultJWKSCacheTTL,
		FetchTimeout:       DefaultFetchTimeout,
		RequireUUIDSubject: true,
	}
}

// Validate checks the configuration and returns a *sserr.Error with code
// [sserr.CodeValidation] for the first invalid field.
func (c *Config) Validate() error {
	if c.Region == "" {
		return sserr.New(sserr.CodeValidation, "auth: region must not be empty")
	}
	if c.UserPoolID == "" {
		return sserr.New(sserr.CodeValidation, "auth: user pool ID must not be empty")
	}
	if c.JWKSCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: JWKS cache TTL must be non-negative")
	}
	if c.FetchTimeout < 0 {
		return sserr.New(sserr.CodeValidation, "auth: JWKS fetch timeout must be non-negative")
	}
	if c.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidation, "auth: clock skew must be non-negative")
	}
	return nil
}

// Issuer returns the expected "iss" claim for the configured user pool.
func (c *Config) Issuer() string {
	return BuildIssuer(c.Region, c.UserPoolID)
}

// DiscoveryURL returns JWKSURL if set, otherwise the user pool's
// well-known JWKS endpoint.
func (c *Config) DiscoveryURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return BuildDiscoveryURL(c.Region, c.UserPoolID)
}
