package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error by traversing the
// error chain. Returns the Error and true if successful.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error, or "" if err is nil or
// not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsUnauthorized reports whether err carries [CodeUnauthorized].
func IsUnauthorized(err error) bool {
	return HasCode(err, CodeUnauthorized)
}

// IsTokenExpired reports whether err carries [CodeTokenExpired].
func IsTokenExpired(err error) bool {
	return HasCode(err, CodeTokenExpired)
}

// IsInternal reports whether err carries [CodeInternal].
func IsInternal(err error) bool {
	return HasCode(err, CodeInternal)
}

// IsClientError reports whether err is an *Error mapping to a 4xx status.
func IsClientError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.IsClient()
}

// IsServerError reports whether err is an *Error mapping to a 5xx status.
// Server errors are the only authentication failures that should page an
// operator.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	return ok && !e.Code.IsClient()
}
