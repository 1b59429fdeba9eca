package repository

import (
	"context"
	"menusync/src/models"
	"menusync/src/models/scopes"
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepository struct {
	DB *gorm.DB
	guard
}

// Find returns the active credential of the given kind.
func (r *CredentialRepository) Find(ctx context.Context, tenantID uuid.UUID, service types.Service, credentialType types.CredentialType) (*models.ApiCredential, error) {
	var cred models.ApiCredential
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("service = ? AND credential_type = ? AND active = ?", service, credentialType, true).
		First(&cred).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

func (r *CredentialRepository) List(ctx context.Context, tenantID uuid.UUID) ([]models.ApiCredential, error) {
	var creds []models.ApiCredential
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Order("service asc, credential_type asc").
		Find(&creds).
		Error
	return creds, translate(err)
}

// Upsert creates the credential or rotates the stored blobs in one statement,
// so concurrent readers observe either the old or the new value.
func (r *CredentialRepository) Upsert(ctx context.Context, tenantID uuid.UUID, cred *models.ApiCredential) (*models.ApiCredential, error) {
	if err := r.own(tenantID, cred.TenantID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	cred.TenantID = tenantID
	cred.Active = true
	cred.RotatedAt = &now
	err := session(ctx, r.DB).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "service"}, {Name: "credential_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_value", "encrypted_secret", "active", "rotated_at", "updated_at"}),
		}).
		Create(cred).
		Error
	if err != nil {
		return nil, translate(err)
	}
	var stored models.ApiCredential
	err = session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("service = ? AND credential_type = ?", cred.Service, cred.CredentialType).
		First(&stored).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *CredentialRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) error {
	res := session(ctx, r.DB).
		Model(&models.ApiCredential{}).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		Update("active", false)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
