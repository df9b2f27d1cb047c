package errors

import (
	"errors"
	"fmt"
)

// detailClaim is the Details key holding the claim name of a
// CodeClaimInvalid error.
const detailClaim = "claim"

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Wrap returns nil when err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps err with a code and formatted message. Wrapf returns nil when
// err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation creates a CodeValidation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a CodeValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Unauthorized creates a CodeAuthentication error.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Malformed creates a CodeTokenMalformed error wrapping cause (which may
// be nil).
func Malformed(message string, cause error) *Error {
	return &Error{Code: CodeTokenMalformed, Message: message, Cause: cause}
}

// ClaimInvalid creates a CodeClaimInvalid error naming the failed claim.
func ClaimInvalid(claim, message string) *Error {
	return &Error{
		Code:    CodeClaimInvalid,
		Message: message,
		Details: map[string]any{detailClaim: claim},
	}
}

// Internal creates a CodeInternal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// FromError converts err to an *Error. An *Error anywhere in the chain is
// returned as-is; anything else is wrapped as CodeInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
