package access

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

const (
	// HeaderAssertion carries the token on requests proxied by the edge.
	HeaderAssertion = "Cf-Access-Jwt-Assertion"

	// CookieAuthorization carries the token on browser requests.
	CookieAuthorization = "CF_Authorization"
)

// TokenVerifier is satisfied by *Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

var _ TokenVerifier = (*Verifier)(nil)

// Authenticate verifies raw and builds its User. Boundary adapters share
// it so that they fail the same way.
func Authenticate(ctx context.Context, verifier TokenVerifier, mapper RoleMapper, raw string) (*User, error) {
	if raw == "" {
		return nil, agerr.Unauthorized("access: request carries no token")
	}
	claims, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return Extract(claims, mapper), nil
}

// TokenFromRequest returns the token from the assertion header, falling
// back to the authorization cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if tok := strings.TrimSpace(r.Header.Get(HeaderAssertion)); tok != "" {
		return tok, true
	}
	if c, err := r.Cookie(CookieAuthorization); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// HTTPMiddleware authenticates every request and stores the User in the
// request context. Requests without a valid token get 401 and never reach
// next.
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/admin", handleAdmin)
//	http.ListenAndServe(":8080", access.HTTPMiddleware(verifier, mapper)(mux))
func HTTPMiddleware(verifier TokenVerifier, mapper RoleMapper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, _ := TokenFromRequest(r)
			user, err := Authenticate(ctx, verifier, mapper, raw)
			if err != nil {
				slog.DebugContext(ctx, "access: rejected request",
					"path", r.URL.Path,
					"code", agerr.GetCode(err),
				)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
		})
	}
}
