package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs, JSON output,
// or fmt.Printf. Bearer tokens travel through this package as Secrets,
// including tokens that failed verification.
//
// The raw value is only accessible via [Secret.Value].
type Secret string

// secretRedacted is the placeholder shown instead of the secret value.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, covering fmt.Printf("%#v").
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. Call it only where the raw
// value is required (e.g., passing the token to the JWT parser).
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This covers encoding/json and slog's JSON handler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Fingerprint returns the first 16 hex characters of the SHA-256 hash of
// the secret. It lets operators correlate log lines for the same token
// without the token itself ever being written.
func (s Secret) Fingerprint() string {
	if s == "" {
		return ""
	}
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}
