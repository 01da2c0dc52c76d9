package utils

import (
	"context"

	"chainvault/internal/models"
)

type ContextKey string

const (
	ctxUserID ContextKey = "userId"
	ctxRole   ContextKey = "role"
	ctxEmail  ContextKey = "email"
)

// WithIdentity stores the authenticated caller on ctx.
func WithIdentity(ctx context.Context, userID string, role models.Role, email string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return context.WithValue(ctx, ctxEmail, email)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxUserID).(string)
	return id, ok && id != ""
}

func RoleFrom(ctx context.Context) models.Role {
	role, _ := ctx.Value(ctxRole).(models.Role)
	if role == "" {
		return models.RoleUser
	}
	return role
}
