package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthorizationHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		wantToken  string
		wantStatus HeaderStatus
	}{
		{"empty", "", "", HeaderMissing},
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi", HeaderOK},
		{"bearer only", "Bearer ", "", HeaderEmptyToken},
		{"bearer without space", "Bearer", "", HeaderWrongScheme},
		{"lowercase scheme", "bearer abc", "", HeaderWrongScheme},
		{"uppercase scheme", "BEARER abc", "", HeaderWrongScheme},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", HeaderWrongScheme},
		{"token without scheme", "abc.def.ghi", "", HeaderWrongScheme},
		{"leading space", " Bearer abc", "", HeaderWrongScheme},
		{"extra space kept", "Bearer  abc", " abc", HeaderOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			token, status := ParseAuthorizationHeader(tt.header)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	token, ok := ExtractBearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = ExtractBearerToken("Bearer ")
	assert.False(t, ok)

	_, ok = ExtractBearerToken("Token abc")
	assert.False(t, ok)
}

func TestHeaderStatus_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ok", HeaderOK.String())
	assert.Equal(t, "missing", HeaderMissing.String())
	assert.Equal(t, "wrong_scheme", HeaderWrongScheme.String())
	assert.Equal(t, "empty_token", HeaderEmptyToken.String())
	assert.Equal(t, "unknown", HeaderStatus(99).String())
}

func encodeHeader(json string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(json))
}

func TestReadKeyID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantKID string
		wantOK  bool
	}{
		{
			name:    "kid present",
			token:   encodeHeader(`{"alg":"RS256","kid":"abc123"}`) + ".payload.sig",
			wantKID: "abc123",
			wantOK:  true,
		},
		{
			name:    "padded header segment",
			token:   base64.URLEncoding.EncodeToString([]byte(`{"kid":"k12"}`)) + ".p.s",
			wantKID: "k12",
			wantOK:  true,
		},
		{
			name:    "header only",
			token:   encodeHeader(`{"kid":"k1"}`) + ".",
			wantKID: "k1",
			wantOK:  true,
		},
		{name: "no dot", token: encodeHeader(`{"kid":"k1"}`)},
		{name: "empty header segment", token: ".payload.sig"},
		{name: "not base64", token: "!!!.payload.sig"},
		{name: "not json", token: encodeHeader("not json") + ".p.s"},
		{name: "json array", token: encodeHeader(`["kid"]`) + ".p.s"},
		{name: "kid missing", token: encodeHeader(`{"alg":"RS256"}`) + ".p.s"},
		{name: "kid empty", token: encodeHeader(`{"kid":""}`) + ".p.s"},
		{name: "kid number", token: encodeHeader(`{"kid":42}`) + ".p.s"},
		{name: "kid null", token: encodeHeader(`{"kid":null}`) + ".p.s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kid, ok := ReadKeyID(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKID, kid)
		})
	}
}

func TestBuildIssuer(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"https://cognito-idp.us-east-1.amazonaws.com/us-east-1_AbCdEf123",
		BuildIssuer("us-east-1", "us-east-1_AbCdEf123"))
}

func TestBuildDiscoveryURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"https://cognito-idp.eu-west-2.amazonaws.com/eu-west-2_Pool/.well-known/jwks.json",
		BuildDiscoveryURL("eu-west-2", "eu-west-2_Pool"))
}

func TestBuildDiscoveryURL_InterpolatesAsIs(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"https://cognito-idp..amazonaws.com//.well-known/jwks.json",
		BuildDiscoveryURL("", ""))
}

func FuzzExtractBearerToken(f *testing.F) {
	f.Add("abc.def.ghi")
	f.Add("")
	f.Add(" leading")
	f.Fuzz(func(t *testing.T, s string) {
		token, ok := ExtractBearerToken("Bearer " + s)
		if s == "" {
			if ok {
				t.Fatalf("empty token accepted")
			}
			return
		}
		if !ok || token != s {
			t.Fatalf("ExtractBearerToken(%q) = %q, %v", "Bearer "+s, token, ok)
		}
	})
}

func FuzzReadKeyID(f *testing.F) {
	f.Add(encodeHeader(`{"kid":"k1"}`) + ".p.s")
	f.Add("....")
	f.Add("")
	f.Fuzz(func(t *testing.T, token string) {
		kid, ok := ReadKeyID(token)
		if ok && kid == "" {
			t.Fatalf("ReadKeyID(%q) returned ok with an empty kid", token)
		}
	})
}
