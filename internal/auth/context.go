package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

type userIDKey struct{}

type roleKey struct{}

func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}

func ContextWithRole(ctx context.Context, role domain.UserRole) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext defaults to the plain user role.
func RoleFromContext(ctx context.Context) domain.UserRole {
	if role, ok := ctx.Value(roleKey{}).(domain.UserRole); ok {
		return role
	}
	return domain.UserRoleUser
}
