package repository

import (
	"context"
	"menusync/src/models"
	"menusync/src/models/scopes"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebhookLogRepository struct {
	DB *gorm.DB
	guard
}

func (r *WebhookLogRepository) WithTx(tx *gorm.DB) *WebhookLogRepository {
	return &WebhookLogRepository{DB: tx, guard: r.guard}
}

func (r *WebhookLogRepository) Append(ctx context.Context, tenantID uuid.UUID, entry *models.WebhookLog) error {
	if err := r.own(tenantID, entry.TenantID); err != nil {
		return err
	}
	entry.TenantID = tenantID
	return translate(session(ctx, r.DB).Create(entry).Error)
}

func (r *WebhookLogRepository) List(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := session(ctx, r.DB).
		Omit("raw_payload").
		Scopes(scopes.ForTenant(tenantID), scopes.WithStatus(status), scopes.Paginate(limit, offset)).
		Order("created_at desc").
		Find(&logs).
		Error
	return logs, translate(err)
}

func (r *WebhookLogRepository) ListForOrder(ctx context.Context, tenantID uuid.UUID, externalOrderID string) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("external_order_id = ?", externalOrderID).
		Order("created_at asc").
		Find(&logs).
		Error
	return logs, translate(err)
}

type SyncLogRepository struct {
	DB *gorm.DB
	guard
}

func (r *SyncLogRepository) WithTx(tx *gorm.DB) *SyncLogRepository {
	return &SyncLogRepository{DB: tx, guard: r.guard}
}

func (r *SyncLogRepository) Append(ctx context.Context, tenantID uuid.UUID, entry *models.SyncLog) error {
	if err := r.own(tenantID, entry.TenantID); err != nil {
		return err
	}
	entry.TenantID = tenantID
	return translate(session(ctx, r.DB).Create(entry).Error)
}

func (r *SyncLogRepository) ListForOrder(ctx context.Context, tenantID uuid.UUID, orderID uuid.UUID) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&logs).
		Error
	return logs, translate(err)
}
