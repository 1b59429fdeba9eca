package tenancy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"menusync/src/models"
	"menusync/src/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantSuspended = errors.New("tenant is not active")
	ErrAmbiguousHost   = errors.New("host does not identify a tenant")
)

type TenantFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	FindByCustomDomain(ctx context.Context, domain string) (*models.Tenant, error)
}

// Toucher records tenant activity. Implementations must not block.
type Toucher interface {
	Touch(t *models.Tenant)
}

type Resolver struct {
	Tenants    TenantFinder
	BaseDomain string
	Toucher    Toucher
	Log        *zap.Logger
}

func NewResolver(tenants TenantFinder, baseDomain string, toucher Toucher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Tenants:    tenants,
		BaseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
		Toucher:    toucher,
		Log:        log,
	}
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// Subdomain extracts the tenant label from host. ok is false when host is
// not under the base domain.
func (r *Resolver) Subdomain(host string) (label string, ok bool) {
	host = normalizeHost(host)
	suffix := "." + r.BaseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	rest := strings.TrimSuffix(host, suffix)
	if i := strings.Index(rest, "."); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

// ResolveHost maps a Host header to an active tenant.
func (r *Resolver) ResolveHost(ctx context.Context, host string) (*models.Tenant, error) {
	host = normalizeHost(host)
	if host == "" || host == r.BaseDomain {
		return nil, ErrAmbiguousHost
	}

	var (
		tenant *models.Tenant
		err    error
	)
	if label, ok := r.Subdomain(host); ok {
		if label == "" {
			return nil, ErrAmbiguousHost
		}
		tenant, err = r.Tenants.FindBySubdomain(ctx, label)
	} else {
		tenant, err = r.Tenants.FindByCustomDomain(ctx, host)
	}
	return r.accept(tenant, err)
}

// ResolveIdentifier maps a path segment (tenant id or subdomain) to an
// active tenant.
func (r *Resolver) ResolveIdentifier(ctx context.Context, identifier string) (*models.Tenant, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, ErrAmbiguousHost
	}
	var (
		tenant *models.Tenant
		err    error
	)
	if id, perr := uuid.Parse(identifier); perr == nil {
		tenant, err = r.Tenants.FindByID(ctx, id)
	} else {
		tenant, err = r.Tenants.FindBySubdomain(ctx, identifier)
	}
	return r.accept(tenant, err)
}

func (r *Resolver) accept(tenant *models.Tenant, err error) (*models.Tenant, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	if !tenant.IsActive() {
		return nil, ErrTenantSuspended
	}
	if r.Toucher != nil {
		r.Toucher.Touch(tenant)
	}
	return tenant, nil
}
