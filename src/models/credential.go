package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApiCredential holds one encrypted secret a tenant uses against an external
// service. Encrypted values never leave the server through JSON.
type ApiCredential struct {
	ID              uuid.UUID            `gorm:"primarykey;type:uuid" json:"id"`
	TenantID        uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_credentials_tenant_service_type" json:"-"`
	Service         types.Service        `gorm:"type:text;not null;uniqueIndex:idx_credentials_tenant_service_type" json:"service"`
	CredentialType  types.CredentialType `gorm:"type:text;not null;uniqueIndex:idx_credentials_tenant_service_type" json:"credential_type"`
	EncryptedValue  string               `gorm:"type:text;not null" json:"-"`
	EncryptedSecret string               `gorm:"type:text" json:"-"`
	Active          bool                 `gorm:"not null;default:true" json:"active"`
	RotatedAt       *time.Time           `json:"rotated_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *ApiCredential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
