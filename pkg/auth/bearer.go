package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// HeaderAuthorization is the header (and gRPC metadata key) carrying the
// bearer token.
const HeaderAuthorization = "authorization"

// bearerPrefix is matched literally and case-sensitively.
const bearerPrefix = "Bearer "

// HeaderStatus classifies the shape of an Authorization header value.
type HeaderStatus int

const (
	// HeaderOK means the header carries a non-empty bearer token.
	HeaderOK HeaderStatus = iota

	// HeaderMissing means no header (or an empty value) was sent.
	HeaderMissing

	// HeaderWrongScheme means the value does not start with "Bearer ".
	HeaderWrongScheme

	// HeaderEmptyToken means the value is exactly "Bearer ".
	HeaderEmptyToken
)

// String returns a lowercase name suitable for logs and metric labels.
func (s HeaderStatus) String() string {
	switch s {
	case HeaderOK:
		return "ok"
	case HeaderMissing:
		return "missing"
	case HeaderWrongScheme:
		return "wrong_scheme"
	case HeaderEmptyToken:
		return "empty_token"
	default:
		return "unknown"
	}
}

// ParseAuthorizationHeader extracts the bearer token from an
// Authorization header value and reports which malformation, if any, was
// found. The token is only meaningful when the status is [HeaderOK].
func ParseAuthorizationHeader(header string) (string, HeaderStatus) {
	if header == "" {
		return "", HeaderMissing
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", HeaderWrongScheme
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", HeaderEmptyToken
	}
	return token, HeaderOK
}

// ExtractBearerToken returns the token from an Authorization header value
// of the form "Bearer <token>". It returns false for a missing header, any
// other scheme (the prefix is case-sensitive), or an empty token.
func ExtractBearerToken(header string) (string, bool) {
	token, status := ParseAuthorizationHeader(header)
	return token, status == HeaderOK
}

// ReadKeyID returns the "kid" from the token's unverified JOSE header. It
// returns false if the token is not dot-separated, the header segment is
// not base64url, the JSON is invalid, or kid is absent or not a string.
// Nothing in the header is trusted beyond selecting a key.
func ReadKeyID(token string) (string, bool) {
	segment, _, found := strings.Cut(token, ".")
	if !found || segment == "" {
		return "", false
	}

	raw, err := decodeSegment(segment)
	if err != nil {
		return "", false
	}

	var header map[string]any
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", false
	}

	kid, ok := header["kid"].(string)
	if !ok || kid == "" {
		return "", false
	}
	return kid, true
}

// decodeSegment decodes base64url with or without padding.
func decodeSegment(seg string) ([]byte, error) {
	if strings.HasSuffix(seg, "=") {
		return base64.URLEncoding.DecodeString(seg)
	}
	return base64.RawURLEncoding.DecodeString(seg)
}

// BuildIssuer returns the Cognito user pool issuer,
// https://cognito-idp.{region}.amazonaws.com/{poolID}. Inputs are
// interpolated as-is.
func BuildIssuer(region, poolID string) string {
	return "https://cognito-idp." + region + ".amazonaws.com/" + poolID
}

// BuildDiscoveryURL returns the user pool's JWKS endpoint,
// {issuer}/.well-known/jwks.json. It performs no I/O.
func BuildDiscoveryURL(region, poolID string) string {
	return BuildIssuer(region, poolID) + "/.well-known/jwks.json"
}
