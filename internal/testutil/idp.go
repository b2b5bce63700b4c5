package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Defaults used by [NewIdP].
const (
	IdPRegion     = "us-east-1"
	IdPUserPoolID = "us-east-1_TestPool"
	IdPDefaultKID = "test-rsa-1"
	IdPClientID   = "test-client-id"
)

// IdP is a fake Cognito user pool: it publishes a JWKS document over
// httptest and mints tokens signed with its private keys. Fetches are
// counted, and the endpoint can be made to fail or stall.
type IdP struct {
	Region     string
	UserPoolID string

	server *httptest.Server

	mu   sync.Mutex
	keys []*idpKey

	fetches atomic.Int64
	failing atomic.Bool

	// Overrides; guarded by mu.
	status int
	body   string
	delay  time.Duration
}

type idpKey struct {
	kid    string
	method jwt.SigningMethod
	signer crypto.Signer
}

// NewIdP starts a fake identity provider with one RS256 key
// ([IdPDefaultKID]). The server is closed when the test ends.
func NewIdP(t testing.TB) *IdP {
	t.Helper()
	p := &IdP{Region: IdPRegion, UserPoolID: IdPUserPoolID}
	p.AddRSAKey(t, IdPDefaultKID)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+IdPUserPoolID+"/.well-known/jwks.json", p.serveJWKS)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

// Issuer returns the issuer the fake pool puts in its tokens. It matches
// the real Cognito issuer for Region and UserPoolID, so an authenticator
// configured with those values accepts the tokens.
func (p *IdP) Issuer() string {
	return "https://cognito-idp." + p.Region + ".amazonaws.com/" + p.UserPoolID
}

// JWKSURL returns the address of the fake discovery endpoint.
func (p *IdP) JWKSURL() string {
	return p.server.URL + "/" + p.UserPoolID + "/.well-known/jwks.json"
}

// Fetches returns how many times the JWKS endpoint was requested.
func (p *IdP) Fetches() int {
	return int(p.fetches.Load())
}

// SetFailing makes the endpoint answer 503 while failing is true.
func (p *IdP) SetFailing(failing bool) {
	p.failing.Store(failing)
}

// SetResponse makes the endpoint answer with the given status and body
// instead of the key set. A zero status restores normal behavior.
func (p *IdP) SetResponse(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.body = body
}

// SetDelay delays every JWKS response by d.
func (p *IdP) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// AddRSAKey generates a 2048-bit RS256 key and publishes it under kid.
func (p *IdP) AddRSAKey(t testing.TB, kid string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	p.addKey(&idpKey{kid: kid, method: jwt.SigningMethodRS256, signer: priv})
}

// AddECKey generates a P-256 ES256 key and publishes it under kid.
func (p *IdP) AddECKey(t testing.TB, kid string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "failed to generate EC key")
	p.addKey(&idpKey{kid: kid, method: jwt.SigningMethodES256, signer: priv})
}

// RemoveKey stops publishing kid. Tokens signed with it can still be
// minted.
func (p *IdP) RemoveKey(kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range p.keys {
		if k.kid == kid {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			return
		}
	}
}

func (p *IdP) addKey(k *idpKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, k)
}

func (p *IdP) key(kid string) *idpKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k.kid == kid {
			return k
		}
	}
	return nil
}

// Claims returns a valid access token payload for sub: the pool issuer,
// token_use "access", iat now and exp in one hour.
func (p *IdP) Claims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":       p.Issuer(),
		"sub":       sub,
		"token_use": "access",
		"client_id": IdPClientID,
		"scope":     "openid profile",
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"jti":       uuid.NewString(),
	}
}

// AccessToken mints a valid access token for a random UUID subject
// using the default key. mutate, if given, edits the claims first.
func (p *IdP) AccessToken(t testing.TB, mutate ...func(jwt.MapClaims)) string {
	t.Helper()
	claims := p.Claims(uuid.NewString())
	for _, m := range mutate {
		m(claims)
	}
	return p.Sign(t, IdPDefaultKID, claims)
}

// Sign signs claims with the key published as kid and sets the kid
// header.
func (p *IdP) Sign(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()
	k := p.key(kid)
	require.NotNil(t, k, "no key %q in fake IdP", kid)
	return signToken(t, k.method, k.signer, kid, claims)
}

// Forge signs claims with a freshly generated RSA key that is not
// published, while claiming kid in the header. The result must fail
// signature verification.
func (p *IdP) Forge(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return signToken(t, jwt.SigningMethodRS256, priv, kid, claims)
}

// SignWithoutKID signs claims with the default key and omits the kid
// header.
func (p *IdP) SignWithoutKID(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	k := p.key(IdPDefaultKID)
	require.NotNil(t, k, "default key removed from fake IdP")
	return signToken(t, k.method, k.signer, "", claims)
}

func signToken(t testing.TB, method jwt.SigningMethod, signer crypto.Signer, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(signer)
	require.NoError(t, err, "failed to sign token")
	return signed
}

// JWKS returns the JSON document currently published.
func (p *IdP) JWKS() []byte {
	p.mu.Lock()
	keys := make([]map[string]string, 0, len(p.keys))
	for _, k := range p.keys {
		keys = append(keys, publicJWK(k))
	}
	p.mu.Unlock()

	body, _ := json.Marshal(map[string]any{"keys": keys})
	return body
}

func publicJWK(k *idpKey) map[string]string {
	b64 := base64.RawURLEncoding.EncodeToString
	switch pub := k.signer.Public().(type) {
	case *rsa.PublicKey:
		return map[string]string{
			"kty": "RSA",
			"kid": k.kid,
			"use": "sig",
			"alg": k.method.Alg(),
			"n":   b64(pub.N.Bytes()),
			"e":   b64(big.NewInt(int64(pub.E)).Bytes()),
		}
	case *ecdsa.PublicKey:
		size := (pub.Curve.Params().BitSize + 7) / 8
		return map[string]string{
			"kty": "EC",
			"kid": k.kid,
			"use": "sig",
			"alg": k.method.Alg(),
			"crv": pub.Curve.Params().Name,
			"x":   b64(pub.X.FillBytes(make([]byte, size))),
			"y":   b64(pub.Y.FillBytes(make([]byte, size))),
		}
	default:
		return nil
	}
}

func (p *IdP) serveJWKS(w http.ResponseWriter, r *http.Request) {
	p.fetches.Add(1)

	p.mu.Lock()
	status, body, delay := p.status, p.body, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if p.failing.Load() {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(p.JWKS())
}
