package repository

import (
	"context"
	"menusync/src/models"
	"menusync/src/models/scopes"
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantRepository reads and writes the tenant registry. Tenants are not
// tenant-owned rows, so no scope applies here.
type TenantRepository struct {
	DB *gorm.DB
}

func (r *TenantRepository) WithTx(tx *gorm.DB) *TenantRepository {
	return &TenantRepository{DB: tx}
}

func (r *TenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := session(ctx, r.DB).Scopes(scopes.WithID(id)).First(&tenant).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) FindBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := session(ctx, r.DB).Where("subdomain = ?", subdomain).First(&tenant).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) FindByCustomDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := session(ctx, r.DB).Where("custom_domain = ?", domain).First(&tenant).Error; err != nil {
		return nil, translate(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return translate(session(ctx, r.DB).Create(tenant).Error)
}

func (r *TenantRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := session(ctx, r.DB).
		Scopes(scopes.WithStatus(status), scopes.Paginate(limit, offset)).
		Order("created_at desc").
		Find(&tenants).
		Error
	return tenants, translate(err)
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.TenantStatus) error {
	res := session(ctx, r.DB).
		Model(&models.Tenant{}).
		Scopes(scopes.WithID(id)).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TenantRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate(session(ctx, r.DB).
		Model(&models.Tenant{}).
		Scopes(scopes.WithID(id)).
		UpdateColumn("last_seen_at", at).
		Error)
}
