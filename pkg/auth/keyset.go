package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// JWK is a single public key record from a JSON Web Key Set. Only the
// members needed for RSA and EC signature verification are kept. JWKs
// are immutable once fetched.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA members.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC members.
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// KeySet is the set of signing keys published by the identity provider.
// The whole set is fetched, cached, and replaced as one unit.
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// errMissingKeys is returned when a discovery document has no "keys" array.
var errMissingKeys = errors.New("auth: JWKS document has no keys array")

// parseKeySet decodes a discovery response body.
func parseKeySet(body []byte) (KeySet, error) {
	var doc struct {
		Keys *[]JWK `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return KeySet{}, fmt.Errorf("auth: failed to parse JWKS JSON: %w", err)
	}
	if doc.Keys == nil {
		return KeySet{}, errMissingKeys
	}
	return KeySet{Keys: *doc.Keys}, nil
}

// Len returns the number of keys in the set.
func (s KeySet) Len() int {
	return len(s.Keys)
}

// Lookup returns the key with the given kid.
func (s KeySet) Lookup(kid string) (JWK, bool) {
	if kid == "" {
		return JWK{}, false
	}
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JWK{}, false
}

// KeyIDs returns the kids in the set, in document order.
func (s KeySet) KeyIDs() []string {
	ids := make([]string, 0, len(s.Keys))
	for _, k := range s.Keys {
		ids = append(ids, k.Kid)
	}
	return ids
}

// PublicKey imports the JWK as an *rsa.PublicKey or *ecdsa.PublicKey.
func (k JWK) PublicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		return parseRSAPublicKey(k.N, k.E)
	case "EC":
		return parseECPublicKey(k.Crv, k.X, k.Y)
	default:
		return nil, fmt.Errorf("auth: unsupported key type %q", k.Kty)
	}
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	if nBase64 == "" || eBase64 == "" {
		return nil, errors.New("auth: RSA key is missing n or e")
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > 1<<31-1 {
		return nil, errors.New("auth: RSA exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates. The point must lie on the curve.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	x := new(big.Int).SetBytes(xBytes)
	y := new(big.Int).SetBytes(yBytes)
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("auth: EC point is not on curve")
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
