package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"
	"menusync/src/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrSubdomainTaken   = errors.New("subdomain already taken")
	ErrInvalidSubdomain = errors.New("subdomain cannot be derived from name")
	ErrEmailTaken       = errors.New("email already registered")
)

// reserved labels route to the platform itself
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "admin": true, "app": true, "static": true, "webhook": true,
}

// IsReservedSubdomain reports whether label belongs to the platform rather
// than a tenant.
func IsReservedSubdomain(label string) bool {
	return reservedSubdomains[strings.ToLower(label)]
}

// Onboarding creates tenants together with their first admin user.
type Onboarding struct {
	DB    *gorm.DB
	Repos *repository.Repositories
	Now   func() time.Time
}

func (o *Onboarding) CreateTenant(ctx context.Context, body types.CreateTenantRequestBody) (*models.Tenant, *models.User, error) {
	sub := strings.ToLower(strings.TrimSpace(body.Subdomain))
	if sub == "" {
		sub = utils.Subdomain(body.Name)
	}
	if sub == "" {
		return nil, nil, ErrInvalidSubdomain
	}
	if reservedSubdomains[sub] {
		return nil, nil, fmt.Errorf("%w: %s is reserved", ErrSubdomainTaken, sub)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	tenant := &models.Tenant{
		Name:         strings.TrimSpace(body.Name),
		Subdomain:    sub,
		CustomDomain: body.CustomDomain,
		Status:       types.TENANT_ACTIVE,
	}
	if body.TrialDays > 0 {
		ends := o.now().AddDate(0, 0, body.TrialDays)
		tenant.TrialEndsAt = &ends
	}
	admin := &models.User{
		Email:        body.AdminEmail,
		Name:         body.AdminName,
		PasswordHash: string(hash),
		Role:         types.ROLE_TENANT_ADMIN,
	}

	err = o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.Repos.Tenants.WithTx(tx).Create(ctx, tenant); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: %s", ErrSubdomainTaken, sub)
			}
			return err
		}
		if err := o.Repos.Users.WithTx(tx).Create(ctx, tenant.ID, admin); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	lib.LoggerFromContext(ctx).Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("subdomain", tenant.Subdomain),
	)
	return tenant, admin, nil
}

func (o *Onboarding) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}
