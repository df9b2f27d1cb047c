package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/accessguard/internal/testutil"
	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	valid string
}

func (s stubVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	if raw != s.valid {
		return nil, agerr.New(agerr.CodeSignatureInvalid, "bad token")
	}
	return testClaims(), nil
}

var groupMapper = ClaimRoleMapper{Claim: "groups", Roles: map[string][]string{"eng": {"viewer"}}}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v := stubVerifier{valid: "good"}

	u, err := Authenticate(ctx, v, groupMapper, "good")
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, u.Roles())

	_, err = Authenticate(ctx, v, groupMapper, "")
	testutil.RequireErrorCode(t, err, agerr.CodeAuthentication)

	_, err = Authenticate(ctx, v, groupMapper, "bad")
	testutil.RequireErrorCode(t, err, agerr.CodeSignatureInvalid)
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
		wantOK bool
	}{
		{name: "header", header: "h-token", want: "h-token", wantOK: true},
		{name: "cookie", cookie: "c-token", want: "c-token", wantOK: true},
		{name: "header wins", header: "h-token", cookie: "c-token", want: "h-token", wantOK: true},
		{name: "header trimmed", header: "  h-token ", want: "h-token", wantOK: true},
		{name: "blank header falls back", header: "   ", cookie: "c-token", want: "c-token", wantOK: true},
		{name: "neither"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(HeaderAssertion, tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieAuthorization, Value: tt.cookie})
			}
			got, ok := TokenFromRequest(r)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()
	var seen *User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := HTTPMiddleware(stubVerifier{valid: "good"}, groupMapper)(next)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "valid", token: "good", status: http.StatusNoContent},
		{name: "invalid", token: "bad", status: http.StatusUnauthorized},
		{name: "missing", token: "", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.token != "" {
				r.Header.Set(HeaderAssertion, tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "user-1", seen.Subject())
				assert.True(t, seen.HasRole("viewer"))
				return
			}
			assert.Nil(t, seen, "next must not run")
			assert.Contains(t, rec.Body.String(), http.StatusText(http.StatusUnauthorized))
		})
	}
}

func TestHTTPMiddleware_WithVerifier(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "k1")
	srv := httptest.NewServer(HTTPMiddleware(h.verifier, nil)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(MustUserFromContext(r.Context()).Subject()))
		})))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: CookieAuthorization, Value: h.token(t, "k1", nil)})
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
