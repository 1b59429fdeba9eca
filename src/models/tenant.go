package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant is one restaurant organization. Subdomain is written once at
// creation and is never updated afterwards since it routes traffic.
type Tenant struct {
	ID           uuid.UUID          `gorm:"primarykey;type:uuid" json:"id"`
	Name         string             `gorm:"not null" json:"name"`
	Subdomain    string             `gorm:"->;<-:create;uniqueIndex;not null" json:"subdomain"`
	CustomDomain *string            `gorm:"uniqueIndex" json:"custom_domain,omitempty"`
	Status       types.TenantStatus `gorm:"type:text;default:'active';not null" json:"status"`
	TrialEndsAt  *time.Time         `json:"trial_ends_at,omitempty"`
	Settings     datatypes.JSONMap  `json:"settings,omitempty"`
	LastSeenAt   *time.Time         `json:"last_seen_at,omitempty"`

	types.Timestamps
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = types.TENANT_ACTIVE
	}
	return nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == types.TENANT_ACTIVE
}

func (t *Tenant) InTrial(now time.Time) bool {
	return t.TrialEndsAt != nil && now.Before(*t.TrialEndsAt)
}
