// Package errors provides the structured error type shared by every
// accessguard package. Each failure carries a machine-readable code so that
// boundary layers (HTTP middleware, gRPC interceptors) can map it to a
// response without string matching, and so that logs and metrics can group
// failures by cause.
//
// # Error Categories
//
//   - Validation errors (VAL): invalid configuration or input
//   - Authentication errors (AUTH): every token verification failure
//   - Internal errors (INT): store and configuration failures
//   - Unavailable errors (UNAVAIL): a dependency cannot be reached
//   - Timeout errors (TIMEOUT): a dependency call exceeded its deadline
//
// Token verification always fails closed: every verification code lives in
// the AUTH category and maps to HTTP 401.
//
// # Usage
//
//	err := errors.ClaimInvalid("aud", "audience does not match")
//	if errors.HasCode(err, errors.CodeClaimInvalid) {
//	    claim := errors.ClaimName(err) // "aud"
//	}
package errors
