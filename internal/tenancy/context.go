package tenancy

import "context"

type ctxKey string

const identityKey ctxKey = "voiceagent.identity"

// Identity is the authenticated caller attached to a request context.
// Every read and write below the HTTP layer is scoped by Identity.UserID
// through the user -> agent -> conversation ownership chain.
type Identity struct {
	UserID string
	Email  string
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the caller identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.UserID != ""
}
