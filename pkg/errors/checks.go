package errors

import (
	"errors"
)

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or "" when
// there is none.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// ClaimName returns the claim recorded on a CodeClaimInvalid error, or ""
// for any other error.
func ClaimName(err error) string {
	e, ok := AsError(err)
	if !ok || e.Code != CodeClaimInvalid {
		return ""
	}
	claim, _ := e.Details[detailClaim].(string)
	return claim
}

// IsValidation reports whether err is a VAL error.
func IsValidation(err error) bool {
	return hasCategory(err, "VAL")
}

// IsAuthentication reports whether err is an AUTH error. Every token
// verification failure is.
func IsAuthentication(err error) bool {
	return hasCategory(err, "AUTH")
}

// IsInternal reports whether err is an INT error.
func IsInternal(err error) bool {
	return hasCategory(err, "INT")
}

// IsTimeout reports whether err is a TIMEOUT error.
func IsTimeout(err error) bool {
	return hasCategory(err, "TIMEOUT")
}

// IsRetryable reports whether retrying the whole operation later may
// succeed: timeouts, unavailable dependencies, and key retrieval failures.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	}
	return e.Code == CodeKeyRetrieval
}

func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}
