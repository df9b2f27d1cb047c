// Package accessgin mounts token verification on gin routers.
//
//	r := gin.New()
//	r.Use(accessgin.Required(verifier, mapper))
//	r.GET("/admin", accessgin.RequireRole("admin"), handleAdmin)
package accessgin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/StricklySoft/accessguard/pkg/access"
	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// userKey is the gin context key holding the *access.User.
const userKey = "accessguard.user"

// Required rejects requests without a valid token with 401. On success the
// user is stored both in the gin context and in the request context, so
// access.UserFromContext works in downstream code.
func Required(verifier access.TokenVerifier, mapper access.RoleMapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, verifier, mapper) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Optional stores the user when the request carries a valid token and lets
// every request through.
func Optional(verifier access.TokenVerifier, mapper access.RoleMapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, verifier, mapper)
		c.Next()
	}
}

// RequireRole answers 403 unless the user holds at least one of roles. It
// must run after Required; without a user it answers 401.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserFrom returns the user stored by Required or Optional.
func UserFrom(c *gin.Context) (*access.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*access.User)
	return user, ok && user != nil
}

func authenticate(c *gin.Context, verifier access.TokenVerifier, mapper access.RoleMapper) bool {
	ctx := c.Request.Context()
	raw, _ := access.TokenFromRequest(c.Request)
	user, err := access.Authenticate(ctx, verifier, mapper, raw)
	if err != nil {
		slog.DebugContext(ctx, "accessgin: rejected request",
			"path", c.FullPath(),
			"code", agerr.GetCode(err),
		)
		return false
	}
	c.Set(userKey, user)
	c.Request = c.Request.WithContext(access.ContextWithUser(ctx, user))
	return true
}
