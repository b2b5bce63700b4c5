package errors

import "net/http"

// Code represents a machine-readable error code. Codes are stable once
// assigned: clients branch on them (e.g., refresh a token on
// [CodeTokenExpired] but force a re-login on [CodeUnauthorized]).
type Code string

const (
	// CodeUnauthorized indicates the request carried no usable credential
	// or the credential could not be trusted.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeTokenExpired indicates the bearer token verified correctly but
	// its exp claim has elapsed.
	CodeTokenExpired Code = "TOKEN_EXPIRED"

	// CodeInternal indicates a server-side failure, such as the key
	// discovery endpoint being unreachable with nothing cached.
	CodeInternal Code = "INTERNAL_ERROR"

	// CodeValidation indicates invalid input supplied by a caller of the
	// library (not by an HTTP client).
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeValidationRequired indicates a required configuration value is
	// missing.
	CodeValidationRequired Code = "VALIDATION_REQUIRED"

	// CodeConfiguration indicates configuration could not be loaded.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// HTTPStatus returns the HTTP status code associated with c. Unknown
// codes map to 500.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeValidation, CodeValidationRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsClient reports whether c maps to a 4xx status.
func (c Code) IsClient() bool {
	s := c.HTTPStatus()
	return s >= 400 && s < 500
}
