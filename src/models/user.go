package models

import (
	"menusync/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a principal that can sign in. Super-admins have no tenant.
type User struct {
	ID           uuid.UUID  `gorm:"primarykey;type:uuid" json:"id"`
	TenantID     *uuid.UUID `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         types.Role `gorm:"type:text;not null" json:"role"`

	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"-"`

	types.Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == types.ROLE_SUPER_ADMIN
}
