// Package testutil holds helpers shared by accessguard tests. Helpers that
// stop the test use require; helpers that only record use assert.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// RequireErrorCode stops the test unless err is an *agerr.Error carrying
// code somewhere in its chain.
func RequireErrorCode(t testing.TB, err error, code agerr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	e, ok := agerr.AsError(err)
	require.True(t, ok, "expected *errors.Error, got %T: %v", err, err)
	require.Equal(t, code, e.Code,
		"error code mismatch: got %q, want %q (message: %s)", e.Code, code, e.Message)
}

// AssertErrorCode is RequireErrorCode without stopping the test.
func AssertErrorCode(t testing.TB, err error, code agerr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	e, ok := agerr.AsError(err)
	if !assert.True(t, ok, "expected *errors.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, e.Code,
		"error code mismatch: got %q, want %q (message: %s)", e.Code, code, e.Message)
}

// TempConfigFile writes content to a file named "config"+ext under
// t.TempDir() with mode 0600 and returns its path.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600),
		"failed to write temp config file %s", path)
	return path
}
