package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
	ErrTenantMismatch = errors.New("tenant isolation violation")
)

// Repositories groups the data access objects over one connection pool.
type Repositories struct {
	Tenants     *TenantRepository
	Users       *UserRepository
	Credentials *CredentialRepository
	Orders      *OrderRepository
	WebhookLogs *WebhookLogRepository
	SyncLogs    *SyncLogRepository
	Billing     *BillingRepository
}

// New wires every repository. In strict mode an attempt to touch another
// tenant's row panics instead of being reported as not found.
func New(db *gorm.DB, strict bool) *Repositories {
	g := guard{strict: strict}
	return &Repositories{
		Tenants:     &TenantRepository{DB: db},
		Users:       &UserRepository{DB: db, guard: g},
		Credentials: &CredentialRepository{DB: db, guard: g},
		Orders:      &OrderRepository{DB: db, guard: g},
		WebhookLogs: &WebhookLogRepository{DB: db, guard: g},
		SyncLogs:    &SyncLogRepository{DB: db, guard: g},
		Billing:     &BillingRepository{DB: db, guard: g},
	}
}

type guard struct {
	strict bool
}

// own reconciles the tenant a row claims with the tenant the caller is
// scoped to. A zero owner is stamped by the caller; anything else must match.
func (g guard) own(scope uuid.UUID, owner uuid.UUID) error {
	if scope == uuid.Nil {
		return fmt.Errorf("%w: missing tenant scope", ErrTenantMismatch)
	}
	if owner == uuid.Nil || owner == scope {
		return nil
	}
	if g.strict {
		panic(fmt.Sprintf("tenant isolation violation: scope=%s row=%s", scope, owner))
	}
	return fmt.Errorf("%w: %w", ErrNotFound, ErrTenantMismatch)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

func session(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx)
}
