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

type OrderRepository struct {
	DB *gorm.DB
	guard
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{DB: tx, guard: r.guard}
}

// Create inserts the order with its items and POS mirror, stamping the
// tenant on every row.
func (r *OrderRepository) Create(ctx context.Context, tenantID uuid.UUID, order *models.Order) error {
	if err := r.own(tenantID, order.TenantID); err != nil {
		return err
	}
	order.TenantID = tenantID
	for i := range order.Items {
		if err := r.own(tenantID, order.Items[i].TenantID); err != nil {
			return err
		}
		order.Items[i].TenantID = tenantID
	}
	if order.PosOrder != nil {
		if err := r.own(tenantID, order.PosOrder.TenantID); err != nil {
			return err
		}
		order.PosOrder.TenantID = tenantID
	}
	return translate(session(ctx, r.DB).Create(order).Error)
}

func (r *OrderRepository) Find(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		Preload("Items").
		Preload("PosOrder").
		First(&order).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *OrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, platform types.Platform, externalID string) (*models.Order, error) {
	var order models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("platform = ? AND external_order_id = ?", platform, externalID).
		First(&order).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *OrderRepository) List(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID), scopes.WithStatus(status), scopes.Paginate(limit, offset)).
		Preload("PosOrder").
		Order("created_at desc").
		Find(&orders).
		Error
	return orders, translate(err)
}

func (r *OrderRepository) ListFailed(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.List(ctx, tenantID, string(types.ORDER_FAILED), limit, offset)
}

// UpdatePlatformStatus records a lifecycle change from the platform. It
// reports false when the stored status already matches.
func (r *OrderRepository) UpdatePlatformStatus(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, status string) (bool, error) {
	res := session(ctx, r.DB).
		Model(&models.Order{}).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		Where("platform_status <> ? OR platform_status IS NULL", status).
		Update("platform_status", status)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkSynced flips the order and its POS mirror to synced.
func (r *OrderRepository) MarkSynced(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, receiptID, response string, at time.Time) error {
	res := session(ctx, r.DB).
		Model(&models.Order{}).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		Updates(map[string]any{"status": types.ORDER_SYNCED, "synced_at": at, "last_sync_error": ""})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return translate(session(ctx, r.DB).
		Model(&models.PosOrder{}).
		Scopes(scopes.ForTenant(tenantID)).
		Where("order_id = ?", id).
		Updates(map[string]any{
			"sync_status":         types.POS_SYNC_SYNCED,
			"external_receipt_id": receiptID,
			"sync_response":       response,
			"attempts":            gorm.Expr("attempts + 1"),
			"last_attempt_at":     at,
			"claim_token":         "",
			"claimed_until":       nil,
		}).
		Error)
}

// MarkFailed keeps the order visible in the failed list with the last error.
func (r *OrderRepository) MarkFailed(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, reason, response string, at time.Time) error {
	res := session(ctx, r.DB).
		Model(&models.Order{}).
		Scopes(scopes.ForTenant(tenantID), scopes.WithID(id)).
		Updates(map[string]any{"status": types.ORDER_FAILED, "last_sync_error": reason})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return translate(session(ctx, r.DB).
		Model(&models.PosOrder{}).
		Scopes(scopes.ForTenant(tenantID)).
		Where("order_id = ?", id).
		Updates(map[string]any{
			"sync_status":     types.POS_SYNC_FAILED,
			"sync_response":   response,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": at,
			"claim_token":     "",
			"claimed_until":   nil,
		}).
		Error)
}

// ClaimPush takes the push lease on an unsynced order until the given time.
// It reports false when another live claim holds the order.
func (r *OrderRepository) ClaimPush(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, token string, now, until time.Time) (bool, error) {
	res := session(ctx, r.DB).
		Model(&models.PosOrder{}).
		Scopes(scopes.ForTenant(tenantID)).
		Where("order_id = ?", id).
		Where("sync_status <> ?", types.POS_SYNC_SYNCED).
		Where("claimed_until IS NULL OR claimed_until < ?", now).
		Updates(map[string]any{"claim_token": token, "claimed_until": until, "queued_at": nil})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkQueued stamps when a push task was last handed to the queue.
func (r *OrderRepository) MarkQueued(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, at time.Time) error {
	return translate(session(ctx, r.DB).
		Model(&models.PosOrder{}).
		Scopes(scopes.ForTenant(tenantID)).
		Where("order_id = ?", id).
		Update("queued_at", at).
		Error)
}

// FindAllTenants loads an order without tenant scope. Super-admin only.
func (r *OrderRepository) FindAllTenants(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.WithID(id)).
		Preload("Items").
		Preload("PosOrder").
		First(&order).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ListFailedAllTenants spans every tenant. Super-admin only.
func (r *OrderRepository) ListFailedAllTenants(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.WithStatus(string(types.ORDER_FAILED)), scopes.Paginate(limit, offset)).
		Preload("PosOrder").
		Order("created_at desc").
		Find(&orders).
		Error
	return orders, translate(err)
}

// ListStalePendingAllTenants returns orders that have sat in pending since
// before cutoff. Used by the background sweeper.
func (r *OrderRepository) ListStalePendingAllTenants(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := session(ctx, r.DB).
		Scopes(scopes.WithPendingStatus).
		Where("created_at < ?", cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&orders).
		Error
	return orders, translate(err)
}

func (r *OrderRepository) CountByStatusAllTenants(ctx context.Context, status types.OrderStatus) (int64, error) {
	var count int64
	err := session(ctx, r.DB).
		Model(&models.Order{}).
		Scopes(scopes.WithStatus(string(status))).
		Count(&count).
		Error
	return count, translate(err)
}
