package tenancy

import (
	"context"
	"errors"

	"menusync/src/models"
)

type tenantKey struct{}

var ErrNoTenant = errors.New("no tenant in context")

// WithTenant returns a child context bound to t. The parent is untouched,
// so the binding ends with the request that created it.
func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

func FromContext(ctx context.Context) (*models.Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(*models.Tenant)
	return t, ok && t != nil
}

// MustFromContext panics when called outside a tenant-bound context. Use it
// only below middleware that guarantees a tenant.
func MustFromContext(ctx context.Context) *models.Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoTenant)
	}
	return t
}

// RunAs runs fn with t as the active tenant. Once fn returns, the caller's
// context still carries whatever tenant it had before.
func RunAs(ctx context.Context, t *models.Tenant, fn func(ctx context.Context) error) error {
	return fn(WithTenant(ctx, t))
}
