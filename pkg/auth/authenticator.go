// Package auth authenticates inbound requests carrying Amazon Cognito
// access tokens.
//
// Verification happens locally against the user pool's published signing
// keys, which are cached in memory (see [KeyCache]); no per-request call
// to the identity provider or a database is made once keys are cached.
//
// The flow for each request is:
//
//	Authorization header shape  -> 401 UNAUTHORIZED (specific message)
//	fetch signing keys          -> 500 INTERNAL_ERROR if none can be had
//	kid, key, signature, issuer -> 401 UNAUTHORIZED "Invalid token"
//	exp                         -> 401 TOKEN_EXPIRED "Token has expired"
//	token_use, sub              -> 401 UNAUTHORIZED "Invalid token"
//	success                     -> [Principal] in the request context
//
// Rejection reasons are logged with a reason code and a token fingerprint;
// raw tokens and claim payloads are never logged or returned.
//
// [Authenticator.HTTPMiddleware] adapts the flow to net/http (and thus to
// chi and similar routers); [Authenticator.UnaryServerInterceptor] and
// [Authenticator.StreamServerInterceptor] adapt it to gRPC.
package auth

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/auth"

// Public response messages. These are part of the wire contract.
const (
	MessageHeaderRequired     = "Authorization header is required"
	MessageInvalidFormat      = "Invalid authorization format"
	MessageTokenRequired      = "Token is required"
	MessageServiceUnavailable = "Authentication service unavailable"
	MessageInvalidToken       = "Invalid token"
	MessageTokenExpired       = "Token has expired"
)

// detailReason is the *sserr.Error detail key holding the [Reason].
const detailReason = "reason"

// Authenticator verifies bearer tokens for one Cognito user pool.
//
// Authenticator is safe for concurrent use by multiple goroutines. Its
// lifetime, and that of its key cache, is owned by the caller; several
// Authenticators for different pools can coexist.
type Authenticator struct {
	issuer   string
	keys     *KeyCache
	verifier *Verifier
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewAuthenticator validates cfg and builds an Authenticator. No network
// I/O happens until the first request.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := NewKeyCache(KeyCacheConfig{
		URL:            cfg.DiscoveryURL(),
		TTL:            cfg.JWKSCacheTTL,
		FetchTimeout:   cfg.FetchTimeout,
		HTTPClient:     cfg.HTTPClient,
		Logger:         logger,
		Metrics:        cfg.Metrics,
		TracerProvider: cfg.TracerProvider,
	})

	return &Authenticator{
		issuer: cfg.Issuer(),
		keys:   keys,
		verifier: NewVerifier(VerifierConfig{
			Issuer:             cfg.Issuer(),
			ClockSkew:          cfg.ClockSkew,
			RequireUUIDSubject: cfg.RequireUUIDSubject,
			TracerProvider:     cfg.TracerProvider,
		}),
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  tracerFrom(cfg.TracerProvider),
	}, nil
}

// Issuer returns the issuer tokens must carry.
func (a *Authenticator) Issuer() string {
	return a.issuer
}

// KeyCache returns the Authenticator's key cache.
func (a *Authenticator) KeyCache() *KeyCache {
	return a.keys
}

// Authenticate runs the full verification flow for an Authorization
// header value ("" when absent). On success it returns the Principal and
// a nil error. On failure it returns a *sserr.Error whose Code and Message
// are safe to send to the client and whose "reason" detail holds the
// [Reason].
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Principal, *sserr.Error) {
	ctx, span := startSpan(ctx, a.tracer, "auth.Authenticate")
	defer span.End()

	raw, status := ParseAuthorizationHeader(header)
	switch status {
	case HeaderMissing:
		return nil, a.rejectHeader(ctx, span, ReasonMissingHeader, MessageHeaderRequired)
	case HeaderWrongScheme:
		return nil, a.rejectHeader(ctx, span, ReasonInvalidScheme, MessageInvalidFormat)
	case HeaderEmptyToken:
		return nil, a.rejectHeader(ctx, span, ReasonEmptyToken, MessageTokenRequired)
	}
	token := Secret(raw)

	keys, err := a.keys.Keys(ctx)
	if err != nil {
		a.metrics.observeRejected(ReasonKeysUnavailable)
		a.logger.ErrorContext(ctx, "auth: signing keys unavailable",
			append(a.logAttrs(ctx, token),
				"reason", string(ReasonKeysUnavailable),
				"jwks_url", a.keys.URL(),
				"error", err,
			)...,
		)
		authErr := sserr.Wrap(err, sserr.CodeInternal, MessageServiceUnavailable).
			WithDetail(detailReason, ReasonKeysUnavailable)
		span.SetAttributes(attribute.String("auth.reason", string(ReasonKeysUnavailable)))
		finishSpan(span, authErr)
		return nil, authErr
	}

	res := a.verifier.Verify(ctx, token, keys)
	switch res.Outcome {
	case OutcomeValid:
		principal := newPrincipal(res.Claims)
		a.metrics.observeAccepted()
		span.SetAttributes(attribute.String("auth.outcome", "accepted"))
		return principal, nil

	case OutcomeExpired:
		return nil, a.rejectToken(ctx, span, token, res, sserr.TokenExpired(MessageTokenExpired))

	default:
		return nil, a.rejectToken(ctx, span, token, res, sserr.Unauthorized(MessageInvalidToken))
	}
}

// rejectHeader handles malformed Authorization headers. No token material
// exists yet, so the log is kept at debug level.
func (a *Authenticator) rejectHeader(ctx context.Context, span trace.Span, reason Reason, message string) *sserr.Error {
	a.metrics.observeRejected(reason)
	span.SetAttributes(
		attribute.String("auth.outcome", "rejected"),
		attribute.String("auth.reason", string(reason)),
	)
	a.logger.DebugContext(ctx, "auth: request rejected", "reason", string(reason))
	return sserr.Unauthorized(message).WithDetail(detailReason, reason)
}

// rejectToken handles tokens that failed verification. The log carries
// the reason code, detail and a fingerprint of the token, never the token.
func (a *Authenticator) rejectToken(ctx context.Context, span trace.Span, token Secret, res Result, public *sserr.Error) *sserr.Error {
	a.metrics.observeRejected(res.Reason)
	span.SetAttributes(
		attribute.String("auth.outcome", "rejected"),
		attribute.String("auth.reason", string(res.Reason)),
	)

	attrs := append(a.logAttrs(ctx, token), "reason", string(res.Reason))
	if res.Detail != "" {
		attrs = append(attrs, "detail", res.Detail)
	}
	if res.KeyID != "" {
		attrs = append(attrs, "kid", res.KeyID)
	}
	a.logger.WarnContext(ctx, "auth: token rejected", attrs...)

	return public.WithDetail(detailReason, res.Reason)
}

func (a *Authenticator) logAttrs(ctx context.Context, token Secret) []any {
	attrs := []any{"token_fingerprint", token.Fingerprint()}
	if traceID, ok := TraceIDFromContext(ctx); ok {
		attrs = append(attrs, "trace_id", traceID)
	}
	return attrs
}

// ReasonOf returns the [Reason] recorded on an error returned by
// [Authenticator.Authenticate], or "" if there is none.
func ReasonOf(err *sserr.Error) Reason {
	if err == nil {
		return ""
	}
	r, _ := err.Detail(detailReason).(Reason)
	return r
}

// tracerFrom returns the auth tracer from tp, or from the global provider
// when tp is nil.
func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// startSpan creates a new OpenTelemetry span with the given name.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records err on the span and marks it as failed. It is a
// no-op when err is nil.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
