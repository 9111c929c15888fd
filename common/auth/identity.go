package auth

import (
	"context"

	"github.com/Sakethtadimeti/checkin-app/common/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the verified caller attached to a request by the auth middleware.
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

func (i Identity) IsManager() bool {
	return i.Role == models.RoleManager
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func IdentityFromClaims(claims *AccessClaims) Identity {
	return Identity{UserID: claims.ID, Email: claims.Email, Role: claims.Role}
}
