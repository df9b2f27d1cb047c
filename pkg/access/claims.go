package access

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// Claims is the payload of a verified token. Claims are only produced by a
// Verifier, after the signature and every claim check have passed.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	// NotBefore and IssuedAt are zero when the token omits them.
	NotBefore time.Time
	IssuedAt  time.Time

	// Email is the user's address; empty for service tokens.
	Email string
	// Type is "app" for user tokens and "service" for service tokens.
	Type string
	// IdentityNonce keys the user's full identity at the edge.
	IdentityNonce string
	// Country is the two-letter code the request originated from.
	Country string

	// Extra holds every other claim, such as custom groups, as decoded
	// from JSON.
	Extra map[string]any
}

var knownClaims = []string{
	"sub", "iss", "aud", "exp", "nbf", "iat",
	"email", "type", "identity_nonce", "country",
}

// HasAudience reports whether aud is one of the token's audiences.
func (c *Claims) HasAudience(aud string) bool {
	return slices.Contains(c.Audience, aud)
}

// Strings reads an extra claim as a list of strings. A single string
// yields a one-element list; non-string members are skipped.
func (c *Claims) Strings(name string) []string {
	switch v := c.Extra[name].(type) {
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// newClaims converts a decoded payload. A registered claim of the wrong
// JSON type fails as that claim.
func newClaims(mc jwt.MapClaims) (*Claims, error) {
	c := &Claims{Extra: make(map[string]any)}
	var err error

	if c.Subject, err = mc.GetSubject(); err != nil {
		return nil, claimTypeError("sub", err)
	}
	if c.Issuer, err = mc.GetIssuer(); err != nil {
		return nil, claimTypeError("iss", err)
	}
	aud, err := mc.GetAudience()
	if err != nil {
		return nil, claimTypeError("aud", err)
	}
	c.Audience = []string(aud)

	if c.ExpiresAt, err = numericDate("exp", mc.GetExpirationTime); err != nil {
		return nil, err
	}
	if c.NotBefore, err = numericDate("nbf", mc.GetNotBefore); err != nil {
		return nil, err
	}
	if c.IssuedAt, err = numericDate("iat", mc.GetIssuedAt); err != nil {
		return nil, err
	}

	for name, dst := range map[string]*string{
		"email": &c.Email, "type": &c.Type, "identity_nonce": &c.IdentityNonce, "country": &c.Country,
	} {
		v, ok := mc[name]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, agerr.ClaimInvalid(name, "access: claim "+name+" must be a string")
		}
		*dst = s
	}

	for name, v := range mc {
		if !slices.Contains(knownClaims, name) {
			c.Extra[name] = v
		}
	}
	return c, nil
}

// validate applies the claim checks in order: iss, aud, exp, nbf, sub.
func (c *Claims) validate(now time.Time, cfg *Config) error {
	if c.Issuer != cfg.Issuer() {
		return agerr.ClaimInvalid("iss", "access: token issuer does not match")
	}
	if !c.HasAudience(cfg.Audience()) {
		return agerr.ClaimInvalid("aud", "access: token audience does not include this application")
	}
	if c.ExpiresAt.IsZero() {
		return agerr.ClaimInvalid("exp", "access: token has no expiry")
	}
	if !c.ExpiresAt.After(now) {
		return agerr.ClaimInvalid("exp", "access: token has expired")
	}
	if !c.NotBefore.IsZero() && c.NotBefore.After(now) {
		return agerr.ClaimInvalid("nbf", "access: token is not valid yet")
	}
	if c.Subject == "" {
		return agerr.ClaimInvalid("sub", "access: token has no subject")
	}
	return nil
}

func claimTypeError(name string, err error) error {
	e := agerr.ClaimInvalid(name, "access: claim "+name+" has the wrong type")
	e.Cause = err
	return e
}

func numericDate(name string, get func() (*jwt.NumericDate, error)) (time.Time, error) {
	nd, err := get()
	if err != nil {
		return time.Time{}, claimTypeError(name, err)
	}
	if nd == nil {
		return time.Time{}, nil
	}
	return nd.Time, nil
}
