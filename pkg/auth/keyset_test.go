package auth

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-cognito-auth/internal/testutil"
)

func TestParseKeySet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr bool
	}{
		{"two keys", `{"keys":[{"kty":"RSA","kid":"a"},{"kty":"EC","kid":"b"}]}`, 2, false},
		{"empty keys", `{"keys":[]}`, 0, false},
		{"unknown members ignored", `{"keys":[{"kty":"RSA","kid":"a","x5c":["..."]}],"extra":1}`, 1, false},
		{"missing keys", `{}`, 0, true},
		{"null keys", `{"keys":null}`, 0, true},
		{"keys not array", `{"keys":{}}`, 0, true},
		{"not json", `<html>`, 0, true},
		{"empty body", ``, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ks, err := parseKeySet([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, ks.Len())
		})
	}
}

func TestParseKeySet_MissingKeysError(t *testing.T) {
	t.Parallel()
	_, err := parseKeySet([]byte(`{"other":[]}`))
	assert.ErrorIs(t, err, errMissingKeys)
}

func TestKeySet_Lookup(t *testing.T) {
	t.Parallel()
	ks := KeySet{Keys: []JWK{{Kid: "a", Kty: "RSA"}, {Kid: "b", Kty: "EC"}}}

	k, ok := ks.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "EC", k.Kty)

	_, ok = ks.Lookup("c")
	assert.False(t, ok)

	_, ok = ks.Lookup("")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, ks.KeyIDs())
}

func TestJWK_PublicKey_FromPublishedKeys(t *testing.T) {
	t.Parallel()
	idp := testutil.NewIdP(t)
	idp.AddECKey(t, "ec-1")

	ks, err := parseKeySet(idp.JWKS())
	require.NoError(t, err)
	require.Equal(t, 2, ks.Len())

	rsaJWK, ok := ks.Lookup(testutil.IdPDefaultKID)
	require.True(t, ok)
	pub, err := rsaJWK.PublicKey()
	require.NoError(t, err)
	rsaPub, ok := pub.(*rsa.PublicKey)
	require.True(t, ok, "expected *rsa.PublicKey, got %T", pub)
	assert.Equal(t, 65537, rsaPub.E)
	assert.Equal(t, 2048, rsaPub.N.BitLen())

	ecJWK, ok := ks.Lookup("ec-1")
	require.True(t, ok)
	pub, err = ecJWK.PublicKey()
	require.NoError(t, err)
	ecPub, ok := pub.(*ecdsa.PublicKey)
	require.True(t, ok, "expected *ecdsa.PublicKey, got %T", pub)
	assert.Equal(t, "P-256", ecPub.Curve.Params().Name)
}

func TestJWK_PublicKey_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		jwk  JWK
	}{
		{"unsupported kty", JWK{Kty: "oct"}},
		{"rsa missing n", JWK{Kty: "RSA", E: "AQAB"}},
		{"rsa missing e", JWK{Kty: "RSA", N: "AQAB"}},
		{"rsa bad n", JWK{Kty: "RSA", N: "!!", E: "AQAB"}},
		{"rsa bad e", JWK{Kty: "RSA", N: "AQAB", E: "!!"}},
		{"rsa exponent one", JWK{Kty: "RSA", N: "AQAB", E: "AQ"}},
		{"rsa exponent too large", JWK{Kty: "RSA", N: "AQAB", E: "AQAAAAAAAAAAAA"}},
		{"ec unsupported curve", JWK{Kty: "EC", Crv: "P-192", X: "AQ", Y: "AQ"}},
		{"ec bad x", JWK{Kty: "EC", Crv: "P-256", X: "!!", Y: "AQ"}},
		{"ec bad y", JWK{Kty: "EC", Crv: "P-256", X: "AQ", Y: "!!"}},
		{"ec point off curve", JWK{Kty: "EC", Crv: "P-256", X: "AQ", Y: "AQ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.jwk.PublicKey()
			assert.Error(t, err)
		})
	}
}
