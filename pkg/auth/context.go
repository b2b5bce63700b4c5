package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Principal is the authenticated caller, derived one-to-one from a
// verified access token. Email and Username are nil when the token did
// not carry the email or preferred_username claim.
//
// A Principal is only ever created after every verification step passed.
type Principal struct {
	// UserID is the token's "sub" claim.
	UserID string `json:"userId"`

	// Email is the "email" claim, if present.
	Email *string `json:"email,omitempty"`

	// Username is the "preferred_username" claim, if present.
	Username *string `json:"username,omitempty"`
}

// newPrincipal copies the identity fields out of verified claims.
func newPrincipal(c *Claims) *Principal {
	p := &Principal{UserID: c.Subject}
	if c.Email != nil {
		email := *c.Email
		p.Email = &email
	}
	if c.Username != nil {
		username := *c.Username
		p.Username = &username
	}
	return p
}

// EmailValue returns the email and whether it was present in the token.
func (p *Principal) EmailValue() (string, bool) {
	if p.Email == nil {
		return "", false
	}
	return *p.Email, true
}

// UsernameValue returns the username and whether it was present in the
// token.
func (p *Principal) UsernameValue() (string, bool) {
	if p.Username == nil {
		return "", false
	}
	return *p.Username, true
}

// contextKey is an unexported type for context keys in this package.
type contextKey int

const principalKey contextKey = iota

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the Principal stored by the authentication
// middleware. It never returns a non-nil Principal with false.
//
// Example:
//
//	p, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    http.Error(w, "unauthenticated", http.StatusUnauthorized)
//	    return
//	}
//	log.Info("request from", "user", p.UserID)
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}

// MustPrincipalFromContext is like [PrincipalFromContext] but panics when
// no Principal is present. Use it only behind the middleware.
func MustPrincipalFromContext(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: no principal in context; ensure authentication middleware is configured")
	}
	return p
}

// TraceIDFromContext returns the OpenTelemetry trace ID as hex, and false
// when no trace is active. Used to correlate rejection logs with traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
