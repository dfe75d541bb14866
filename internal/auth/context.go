package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated agent behind a request.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity injected by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func TenantID(ctx context.Context) (string, error) {
	id, err := IdentityFrom(ctx)
	if err != nil || id.TenantID == "" {
		return "", errors.New("tenant_id not in context")
	}
	return id.TenantID, nil
}

func Role(ctx context.Context) (string, error) {
	id, err := IdentityFrom(ctx)
	if err != nil || id.Role == "" {
		return "", errors.New("role not in context")
	}
	return id.Role, nil
}
