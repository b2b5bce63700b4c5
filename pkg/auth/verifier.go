package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenUseAccess is the only token_use value accepted. Cognito ID tokens
// carry "id" and are rejected.
const TokenUseAccess = "access"

// maxTokenSize is the maximum accepted size for a token string (8 KB).
const maxTokenSize = 8192

// validMethods lists the signing algorithms accepted from the key set.
// HMAC and "none" are never accepted.
var validMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Claims is the verified payload of a Cognito access token. Email and
// Username are nil when the token does not carry them.
type Claims struct {
	jwt.RegisteredClaims

	TokenUse string  `json:"token_use"`
	ClientID string  `json:"client_id,omitempty"`
	Scope    string  `json:"scope,omitempty"`
	Email    *string `json:"email,omitempty"`
	Username *string `json:"preferred_username,omitempty"`
}

// Outcome is the verdict of a token verification.
type Outcome int

const (
	// OutcomeValid means the signature and every claim check passed.
	OutcomeValid Outcome = iota

	// OutcomeExpired means the token verified but its exp has elapsed.
	OutcomeExpired

	// OutcomeInvalid means the token must not be trusted.
	OutcomeInvalid
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeExpired:
		return "expired"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Reason is a server-side rejection code. Reasons are logged and used as
// metric labels; they are never sent to clients.
type Reason string

// Header-shape reasons. These are decided before any key lookup.
const (
	// ReasonMissingHeader means the Authorization header is absent or empty.
	ReasonMissingHeader Reason = "missing_header"

	// ReasonInvalidScheme means the header does not start with "Bearer ".
	ReasonInvalidScheme Reason = "invalid_scheme"

	// ReasonEmptyToken means nothing follows the "Bearer " prefix.
	ReasonEmptyToken Reason = "empty_token"
)

// ReasonKeysUnavailable means no signing keys could be obtained, fresh or
// stale. It is the only reason that maps to a 500.
const ReasonKeysUnavailable Reason = "jwks_unavailable"

// Token reasons, produced by [Verifier.Verify].
const (
	// ReasonInvalidTokenHeader means the JOSE header could not be read or
	// carries no kid, or the token is oversized.
	ReasonInvalidTokenHeader Reason = "invalid_token_header"

	// ReasonKIDNotFound means the kid is not in the current key set.
	ReasonKIDNotFound Reason = "kid_not_found"

	// ReasonTokenExpired means the token verified but exp has elapsed.
	ReasonTokenExpired Reason = "token_expired"

	// ReasonInvalidSignatureOrClaims covers signature, algorithm, issuer
	// and registered-claim failures. [Result.Detail] says which.
	ReasonInvalidSignatureOrClaims Reason = "invalid_signature_or_claims"

	// ReasonInvalidTokenUse means token_use is not "access".
	ReasonInvalidTokenUse Reason = "invalid_token_use"

	// ReasonInvalidSubject means sub is missing, or is not a UUID when one
	// is required.
	ReasonInvalidSubject Reason = "invalid_subject"
)

// Result is the outcome of [Verifier.Verify]. Claims is set only when
// Outcome is [OutcomeValid]. Detail narrows down Reason for operators and
// never contains token material.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Detail  string
	KeyID   string
	Claims  *Claims
}

func invalid(reason Reason, detail, kid string) Result {
	return Result{Outcome: OutcomeInvalid, Reason: reason, Detail: detail, KeyID: kid}
}

// VerifierConfig configures a [Verifier].
type VerifierConfig struct {
	// Issuer is the exact expected "iss" claim. Required.
	Issuer string

	// ClockSkew is the leeway applied to exp and nbf.
	ClockSkew time.Duration

	// RequireUUIDSubject rejects tokens whose "sub" is not a UUID.
	RequireUUIDSubject bool

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Verifier checks a token's signature against a key set and validates its
// claims. It performs no I/O and is safe for concurrent use.
type Verifier struct {
	cfg    VerifierConfig
	tracer trace.Tracer

	// now is replaceable in tests.
	now func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	return &Verifier{
		cfg:    cfg,
		tracer: tracerFrom(cfg.TracerProvider),
		now:    time.Now,
	}
}

// Verify runs the verification steps in order: read the kid, find the
// key, check signature and issuer, check expiry, check token_use, check
// sub. The first failing step determines the result.
func (v *Verifier) Verify(ctx context.Context, token Secret, keys KeySet) Result {
	_, span := startSpan(ctx, v.tracer, "auth.Verify")
	defer span.End()

	res := v.verify(token, keys)
	span.SetAttributes(attribute.String("auth.outcome", res.Outcome.String()))
	if res.Outcome != OutcomeValid {
		span.SetAttributes(attribute.String("auth.reason", string(res.Reason)))
	}
	return res
}

func (v *Verifier) verify(token Secret, keys KeySet) Result {
	raw := token.Value()
	if len(raw) > maxTokenSize {
		return invalid(ReasonInvalidTokenHeader, "oversized", "")
	}

	kid, ok := ReadKeyID(raw)
	if !ok {
		return invalid(ReasonInvalidTokenHeader, "unreadable_header", "")
	}

	jwk, ok := keys.Lookup(kid)
	if !ok {
		return invalid(ReasonKIDNotFound, "", kid)
	}

	pub, err := jwk.PublicKey()
	if err != nil {
		return invalid(ReasonInvalidSignatureOrClaims, "key_import_failed", kid)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(validMethods),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.now),
	)

	claims := &Claims{}
	_, err = parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if jwk.Alg != "" && t.Method.Alg() != jwk.Alg {
			return nil, errAlgMismatch
		}
		return pub, nil
	})
	if err != nil {
		return classifyParseError(err, kid)
	}

	if claims.TokenUse != TokenUseAccess {
		return invalid(ReasonInvalidTokenUse, "", kid)
	}

	if claims.Subject == "" {
		return invalid(ReasonInvalidSubject, "missing", kid)
	}
	if v.cfg.RequireUUIDSubject {
		if _, err := uuid.Parse(claims.Subject); err != nil {
			return invalid(ReasonInvalidSubject, "not_uuid", kid)
		}
	}

	return Result{Outcome: OutcomeValid, KeyID: kid, Claims: claims}
}

var errAlgMismatch = errors.New("auth: token alg does not match key alg")

// classifyParseError maps golang-jwt errors onto a Result. A bad
// signature or wrong issuer wins over expiry, so an expired token from a
// foreign issuer is reported as invalid, not expired.
func classifyParseError(err error, kid string) Result {
	switch {
	case errors.Is(err, errAlgMismatch):
		return invalid(ReasonInvalidSignatureOrClaims, "alg_mismatch", kid)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return invalid(ReasonInvalidSignatureOrClaims, "malformed", kid)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return invalid(ReasonInvalidSignatureOrClaims, "signature_invalid", kid)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return invalid(ReasonInvalidSignatureOrClaims, "unverifiable", kid)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalid(ReasonInvalidSignatureOrClaims, "issuer_mismatch", kid)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return invalid(ReasonInvalidSignatureOrClaims, "required_claim_missing", kid)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Result{Outcome: OutcomeExpired, Reason: ReasonTokenExpired, KeyID: kid}
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return invalid(ReasonInvalidSignatureOrClaims, "not_valid_yet", kid)
	default:
		return invalid(ReasonInvalidSignatureOrClaims, "other", kid)
	}
}
