package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Order is an order ingested from a delivery platform. The triple
// (tenant, platform, external order id) identifies a delivery event.
type Order struct {
	ID              uuid.UUID         `gorm:"primarykey;type:uuid" json:"id"`
	TenantID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_orders_tenant_platform_external" json:"-"`
	Platform        types.Platform    `gorm:"type:text;not null;uniqueIndex:idx_orders_tenant_platform_external" json:"platform"`
	ExternalOrderID string            `gorm:"not null;uniqueIndex:idx_orders_tenant_platform_external" json:"external_order_id"`
	Status          types.OrderStatus `gorm:"type:text;not null;default:'pending';index" json:"status"`
	PlatformStatus  string            `json:"platform_status,omitempty"`
	Currency        string            `gorm:"size:3" json:"currency"`
	Subtotal        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DeliveryFee     decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"delivery_fee"`
	Discount        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"discount"`
	Total           decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	PlacedAt        *time.Time        `json:"placed_at,omitempty"`
	SyncedAt        *time.Time        `json:"synced_at,omitempty"`
	LastSyncError   string            `gorm:"type:text" json:"last_sync_error,omitempty"`

	Items    []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	PosOrder *PosOrder   `gorm:"foreignKey:OrderID" json:"pos_order,omitempty"`

	types.Timestamps
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = types.ORDER_PENDING
	}
	return nil
}

type OrderItem struct {
	ID             uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ExternalItemID string          `json:"external_item_id,omitempty"`
	PosVariantID   string          `json:"pos_variant_id,omitempty"`
	Name           string          `json:"name"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Options        datatypes.JSON  `json:"options,omitempty"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// PosOrder mirrors the order on the point-of-sale side. SyncStatus stays
// failed until a push succeeds.
type PosOrder struct {
	ID                uuid.UUID           `gorm:"primarykey;type:uuid" json:"id"`
	TenantID          uuid.UUID           `gorm:"type:uuid;not null;index" json:"-"`
	OrderID           uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex" json:"-"`
	Provider          types.Service       `gorm:"type:text;not null" json:"provider"`
	ExternalReceiptID string              `json:"external_receipt_id,omitempty"`
	SyncStatus        types.PosSyncStatus `gorm:"type:text;not null;default:'failed'" json:"sync_status"`
	SyncResponse      string              `gorm:"type:text" json:"sync_response,omitempty"`
	Attempts          int                 `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt     *time.Time          `json:"last_attempt_at,omitempty"`
	QueuedAt          *time.Time          `json:"queued_at,omitempty"`
	ClaimToken        string              `gorm:"type:text" json:"-"`
	ClaimedUntil      *time.Time          `json:"-"`

	types.Timestamps
}

func (p *PosOrder) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
