package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrNoIdentity is returned when an operation requires a tenant identity but
// none was attached to the context.
var ErrNoIdentity = errors.New("tenant identity not present in context")

// ErrIncompleteIdentity flags an identity missing its tenant id or role.
var ErrIncompleteIdentity = errors.New("tenant identity requires tenant id and role")

// ErrUnavailable marks a tenant that does not exist or is deactivated. Resolvers
// wrap their domain errors with it so transport layers can answer 403 without
// knowing the registry.
var ErrUnavailable = errors.New("tenant unavailable")

// Identity is the caller's tenant-scoped identity for one logical operation.
// It is built by the authentication layer from an already verified token and
// travels only on context.Context; it is never stored in package state.
type Identity struct {
	TenantID string
	UserID   string
	Role     string
}

// Validate reports whether the identity is complete enough to scope a database session.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.TenantID) == "" || strings.TrimSpace(id.Role) == "" {
		return ErrIncompleteIdentity
	}
	return nil
}

type ctxKey struct{}

// WithIdentity returns a derived context carrying id. The parent is left untouched,
// so nested scopes restore the outer identity as soon as the inner context goes out of use.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the Identity and a boolean indicating presence.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Require returns the identity on ctx or ErrNoIdentity. There is no fallback.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Run invokes fn with a context carrying id. Goroutines started by fn with that
// context observe the same identity.
func Run(ctx context.Context, id Identity, fn func(ctx context.Context) error) error {
	return fn(WithIdentity(ctx, id))
}
