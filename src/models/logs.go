package models

import (
	"menusync/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookLog is an append-only audit row written for every webhook delivery
// that passed authentication.
type WebhookLog struct {
	ID              uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	OrderID         *uuid.UUID      `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Platform        types.Platform  `gorm:"type:text;not null" json:"platform"`
	Event           string          `json:"event"`
	ExternalOrderID string          `gorm:"index" json:"external_order_id,omitempty"`
	Status          types.LogStatus `gorm:"type:text;not null;index" json:"status"`
	HTTPStatus      int             `json:"http_status"`
	Error           string          `gorm:"type:text" json:"error,omitempty"`
	RawPayload      string          `gorm:"type:text" json:"raw_payload,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (l *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// SyncLog records one attempt to push an order to the POS.
type SyncLog struct {
	ID         uuid.UUID       `gorm:"primarykey;type:uuid" json:"id"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Provider   types.Service   `gorm:"type:text;not null" json:"provider"`
	Status     types.LogStatus `gorm:"type:text;not null" json:"status"`
	Attempt    int             `json:"attempt"`
	Request    string          `gorm:"type:text" json:"request,omitempty"`
	Response   string          `gorm:"type:text" json:"response,omitempty"`
	Error      string          `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (l *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
