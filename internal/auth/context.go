// ABOUTME: Identity context for tracking the verified subject through request handlers
// ABOUTME: Provides WithIdentity/IdentityFromContext for propagating auth info via context

package auth

import (
	"context"
)

// identityContextKey is the key type for storing Identity in context.Context.
type identityContextKey struct{}

// WithIdentity returns a new context with the verified identity attached.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext retrieves the verified identity from the context,
// returning nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityContextKey{})
	if val == nil {
		return nil
	}
	ident, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return ident
}
