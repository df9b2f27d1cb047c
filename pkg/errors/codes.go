package errors

// Code is a machine-readable error code of the form CATEGORY_NNN.
// Codes are stable once assigned.
type Code string

const (
	// CodeValidation indicates invalid input or configuration.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required value is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeAuthentication indicates a request carried no usable credential.
	CodeAuthentication Code = "AUTH_001"

	// CodeTokenMalformed indicates the token is not three dot-separated
	// segments with a decodable header and payload.
	CodeTokenMalformed Code = "AUTH_010"

	// CodeUnsupportedAlgorithm indicates the token header declares an
	// algorithm other than RS256.
	CodeUnsupportedAlgorithm Code = "AUTH_011"

	// CodeKeyRetrieval indicates the signing key set could not be fetched
	// from the identity edge.
	CodeKeyRetrieval Code = "AUTH_012"

	// CodeUnknownKey indicates no signing key matches the token's kid.
	CodeUnknownKey Code = "AUTH_013"

	// CodeSignatureInvalid indicates the signature does not verify.
	CodeSignatureInvalid Code = "AUTH_014"

	// CodeClaimInvalid indicates a claim failed validation. The failing
	// claim is recorded under Details["claim"].
	CodeClaimInvalid Code = "AUTH_015"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"

	// CodeInternalStore indicates a key-value store operation failed.
	CodeInternalStore Code = "INT_002"

	// CodeInternalConfiguration indicates configuration could not be loaded.
	CodeInternalConfiguration Code = "INT_003"

	// CodeCacheWrite indicates a key set could not be written to the cache.
	// It is logged and never returned from a verification.
	CodeCacheWrite Code = "INT_010"

	// CodeUnavailableDependency indicates a dependency cannot be reached.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeoutStore indicates a key-value store operation timed out.
	CodeTimeoutStore Code = "TIMEOUT_002"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH", "INT").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
