package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionPlan struct {
	ID                uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	Name              string    `gorm:"uniqueIndex;not null" json:"name"`
	MonthlyOrderLimit int       `gorm:"not null;default:0" json:"monthly_order_limit"`

	types.Timestamps
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Subscription struct {
	ID               uuid.UUID                `gorm:"primarykey;type:uuid" json:"id"`
	TenantID         uuid.UUID                `gorm:"type:uuid;not null;index" json:"-"`
	PlanID           uuid.UUID                `gorm:"type:uuid;not null" json:"plan_id"`
	Status           types.SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	CurrentPeriodEnd *time.Time               `json:"current_period_end,omitempty"`

	Plan *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`

	types.Timestamps
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SubscriptionUsage counts ingested orders per tenant and calendar month.
type SubscriptionUsage struct {
	ID          uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_tenant_period" json:"-"`
	Period      string    `gorm:"size:7;not null;uniqueIndex:idx_usage_tenant_period" json:"period"`
	OrdersCount int       `gorm:"not null;default:0" json:"orders_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *SubscriptionUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}
