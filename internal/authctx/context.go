// Package authctx exposes the authenticated user to downstream services.
package authctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// UserContextKey is the request context key for the authenticated user.
type UserContextKey struct{}

// User is the authenticated principal attached to a request.
type User struct {
	ID   snowflake.ID
	Role string
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, UserContextKey{}, user)
}

// UserFromContext returns the authenticated user, if set.
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}

	value := ctx.Value(UserContextKey{})
	if value == nil {
		return User{}, false
	}
	switch typed := value.(type) {
	case User:
		return typed, typed.ID != 0
	case snowflake.ID:
		return User{ID: typed}, typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return User{ID: parsed}, parsed != 0
		}
	}
	return User{}, false
}

// UserIDFromContext returns just the authenticated user ID.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	user, ok := UserFromContext(ctx)
	return user.ID, ok
}
