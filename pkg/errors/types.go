package errors

import (
	"fmt"
)

// Error represents a structured error with a code, message, and optional
// cause.
//
// Only Code and Message are ever serialized to clients (see
// [Error.Response]). Cause and Details are for server-side logging and
// must not contain raw credentials.
type Error struct {
	// Code is the machine-readable error code (e.g., "UNAUTHORIZED").
	Code Code

	// Message is the human-readable error message shown to clients.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional structured data for logging, such as
	// a rejection reason code.
	Details map[string]any
}

// ErrorResponse is the JSON body written for failed requests:
// {"error": "<CODE>", "message": "<string>"}.
type ErrorResponse struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error's code.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Response returns the public response body for this error.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message}
}

// Detail returns the detail stored under key, or nil.
func (e *Error) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// WithDetail returns a copy of e with a single detail key-value pair
// added. The original error is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	newDetails := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		newDetails[k] = v
	}
	newDetails[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: newDetails,
	}
}

// Format implements fmt.Formatter. Use %+v to include details and the
// cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
