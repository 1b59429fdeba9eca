package controllers

import (
	"errors"
	"net/http"
	"time"

	"menusync/src/common"
	"menusync/src/lib"
	"menusync/src/middlewares"
	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderDetail struct {
	Order       *models.Order       `json:"order"`
	SyncLogs    []models.SyncLog    `json:"sync_logs"`
	WebhookLogs []models.WebhookLog `json:"webhook_logs"`
}

// FailedSync is one row of the failed-sync queue.
type FailedSync struct {
	OrderID         uuid.UUID      `json:"order_id"`
	TenantID        uuid.UUID      `json:"tenant_id"`
	Platform        types.Platform `json:"platform"`
	ExternalOrderID string         `json:"external_order_id"`
	Attempts        int            `json:"attempts"`
	LastError       string         `json:"last_error,omitempty"`
	LastAttemptAt   *time.Time     `json:"last_attempt_at,omitempty"`
}

type RetryResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	TaskID  string    `json:"task_id"`
	Status  string    `json:"status"`
}

// Orders is the operator surface over ingested orders and their POS sync.
type Orders struct {
	Repos  *repository.Repositories
	Syncer *common.Syncer
}

func (o *Orders) List(ctx *gin.Context) ([]models.Order, int, error) {
	var q types.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenant := middlewares.Tenant(ctx)
	orders, err := o.Repos.Orders.List(ctx.Request.Context(), tenant.ID, q.Status, q.Limit, q.Offset)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return orders, http.StatusOK, nil
}

func (o *Orders) Get(ctx *gin.Context) (*OrderDetail, int, error) {
	id, err := orderID(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	tenant := middlewares.Tenant(ctx)
	order, err := o.Repos.Orders.Find(reqCtx, tenant.ID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	syncLogs, err := o.Repos.SyncLogs.ListForOrder(reqCtx, tenant.ID, order.ID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	hookLogs, err := o.Repos.WebhookLogs.ListForOrder(reqCtx, tenant.ID, order.ExternalOrderID)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return &OrderDetail{Order: order, SyncLogs: syncLogs, WebhookLogs: hookLogs}, http.StatusOK, nil
}

func (o *Orders) ListFailed(ctx *gin.Context) ([]FailedSync, int, error) {
	var q types.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenant := middlewares.Tenant(ctx)
	orders, err := o.Repos.Orders.ListFailed(ctx.Request.Context(), tenant.ID, q.Limit, q.Offset)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return failedRows(orders), http.StatusOK, nil
}

// ListFailedAllTenants is the super-admin view across every tenant.
func (o *Orders) ListFailedAllTenants(ctx *gin.Context) ([]FailedSync, int, error) {
	var q types.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, http.StatusBadRequest, err
	}
	orders, err := o.Repos.Orders.ListFailedAllTenants(ctx.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return failedRows(orders), http.StatusOK, nil
}

// Retry re-enqueues the POS push of an order of the resolved tenant.
func (o *Orders) Retry(ctx *gin.Context) (*RetryResponse, int, error) {
	id, err := orderID(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return o.retry(ctx, middlewares.Tenant(ctx).ID, id)
}

// RetryAllTenants re-enqueues the POS push of any tenant's order.
func (o *Orders) RetryAllTenants(ctx *gin.Context) (*RetryResponse, int, error) {
	id, err := orderID(ctx)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	order, err := o.Repos.Orders.FindAllTenants(ctx.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return o.retry(ctx, order.TenantID, order.ID)
}

func (o *Orders) retry(ctx *gin.Context, tenantID, id uuid.UUID) (*RetryResponse, int, error) {
	taskID, err := o.Syncer.Retry(ctx.Request.Context(), tenantID, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, http.StatusNotFound, err
	case errors.Is(err, common.ErrAlreadySynced), errors.Is(err, common.ErrPushPending):
		return nil, http.StatusConflict, err
	case err != nil:
		return nil, http.StatusInternalServerError, err
	}
	lib.LoggerFromContext(ctx.Request.Context()).Info("pos push re-enqueued",
		zap.String("order_id", id.String()),
		zap.String("task_id", taskID),
	)
	return &RetryResponse{OrderID: id, TaskID: taskID, Status: "queued"}, http.StatusAccepted, nil
}

func (o *Orders) WebhookLogs(ctx *gin.Context) ([]models.WebhookLog, int, error) {
	var q types.ListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, http.StatusBadRequest, err
	}
	tenant := middlewares.Tenant(ctx)
	logs, err := o.Repos.WebhookLogs.List(ctx.Request.Context(), tenant.ID, q.Status, q.Limit, q.Offset)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return logs, http.StatusOK, nil
}

func orderID(ctx *gin.Context) (uuid.UUID, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(params.ID)
}

func failedRows(orders []models.Order) []FailedSync {
	out := make([]FailedSync, 0, len(orders))
	for _, o := range orders {
		row := FailedSync{
			OrderID:         o.ID,
			TenantID:        o.TenantID,
			Platform:        o.Platform,
			ExternalOrderID: o.ExternalOrderID,
			LastError:       o.LastSyncError,
		}
		if o.PosOrder != nil {
			row.Attempts = o.PosOrder.Attempts
			row.LastAttemptAt = o.PosOrder.LastAttemptAt
		}
		out = append(out, row)
	}
	return out
}
