package repository

import (
	"context"
	"menusync/src/models"
	"menusync/src/models/scopes"
	"menusync/src/types"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
	guard
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx, guard: r.guard}
}

func (r *UserRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error) {
	var user models.User
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("email = ?", strings.ToLower(email)).
		First(&user).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		First(&user).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindSuperAdminByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := session(ctx, r.DB).
		Where("tenant_id IS NULL AND role = ? AND email = ?", types.ROLE_SUPER_ADMIN, strings.ToLower(email)).
		First(&user).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByIDAllTenants looks a user up regardless of tenant. Super-admin only.
func (r *UserRepository) FindByIDAllTenants(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := session(ctx, r.DB).Scopes(scopes.WithID(id)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, tenantID uuid.UUID, user *models.User) error {
	owner := uuid.Nil
	if user.TenantID != nil {
		owner = *user.TenantID
	}
	if err := r.own(tenantID, owner); err != nil {
		return err
	}
	user.TenantID = &tenantID
	user.Email = strings.ToLower(user.Email)
	return translate(session(ctx, r.DB).Create(user).Error)
}

// CreateSuperAdmin inserts a user that belongs to no tenant.
func (r *UserRepository) CreateSuperAdmin(ctx context.Context, user *models.User) error {
	user.TenantID = nil
	user.Role = types.ROLE_SUPER_ADMIN
	user.Email = strings.ToLower(user.Email)
	return translate(session(ctx, r.DB).Create(user).Error)
}
