package access

import "context"

type contextKey int

const userKey contextKey = iota

// ContextWithUser returns a copy of ctx carrying user.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by the boundary adapters. It
// never returns a nil user with true.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userKey).(*User)
	return user, ok && user != nil
}

// MustUserFromContext is UserFromContext for handlers mounted behind the
// middleware. It panics when no user is present.
func MustUserFromContext(ctx context.Context) *User {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("access: no user in context; is the access middleware installed?")
	}
	return user
}
