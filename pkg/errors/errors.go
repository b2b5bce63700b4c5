// Package errors provides the structured error type used across the
// Cognito authentication module. Every failure that can reach a client
// carries a stable, machine-readable [Code] and a human-readable message
// that is safe to expose.
//
// # Error Codes
//
// Public codes are part of the wire contract and appear verbatim in
// response bodies:
//
//   - UNAUTHORIZED: missing, malformed or untrusted credentials (401)
//   - TOKEN_EXPIRED: the bearer token was valid but has expired (401)
//   - INTERNAL_ERROR: the authentication dependency is unavailable (500)
//
// Configuration and validation codes are used while wiring the module
// and are never returned to end users.
//
// # Usage
//
// Create a new error:
//
//	err := errors.Unauthorized("Invalid token")
//
// Wrap an underlying cause, which stays server-side:
//
//	err := errors.Wrap(fetchErr, errors.CodeInternal, "Authentication service unavailable")
//
// Write the public body:
//
//	if e, ok := errors.AsError(err); ok {
//	    w.WriteHeader(e.HTTPStatus())
//	    _ = json.NewEncoder(w).Encode(e.Response())
//	}
package errors
