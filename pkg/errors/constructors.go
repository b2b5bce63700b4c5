package errors

import (
	"fmt"
)

// New creates a new Error with the specified code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps err with a code and message. If err is nil, Wrap returns nil.
//
// Example:
//
//	keys, err := cache.Keys(ctx)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeInternal, "Authentication service unavailable")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps err with a formatted message. If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Unauthorized creates a new UNAUTHORIZED error.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// TokenExpired creates a new TOKEN_EXPIRED error.
func TokenExpired(message string) *Error {
	return New(CodeTokenExpired, message)
}

// Internal creates a new INTERNAL_ERROR error. The message is returned to
// clients, so it must stay generic.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Validation creates a new validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}
