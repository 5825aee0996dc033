package common

import (
	"context"
	"slices"
)

type ctxKey string

const (
	userIDKey ctxKey = "auth/user-id"
	rolesKey  ctxKey = "auth/roles"
)

// WithUser stores the authenticated identity and roles on the context.
func WithUser(ctx context.Context, id string, roles []string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	return context.WithValue(ctx, rolesKey, roles)
}

// UserID extracts the authenticated user identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// HasRole reports whether the authenticated identity carries the role.
func HasRole(ctx context.Context, role string) bool {
	v := ctx.Value(rolesKey)
	roles, ok := v.([]string)
	if !ok {
		return false
	}
	return slices.Contains(roles, role)
}
