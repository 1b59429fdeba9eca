package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"menusync/src/billing"
	"menusync/src/lib"
	"menusync/src/models"
	"menusync/src/queue"
	"menusync/src/repository"
	"menusync/src/types"
	"menusync/src/webhooks"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuotaChecker interface {
	Check(ctx context.Context, tenant *models.Tenant) error
	// Admit runs inside the ingest transaction once usage has been counted.
	Admit(ctx context.Context, tx *gorm.DB, tenant *models.Tenant) error
}

// IngestResult is what the webhook caller learns about a delivery.
type IngestResult struct {
	Outcome         types.LogStatus `json:"-"`
	Status          string          `json:"status"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	ExternalOrderID string          `json:"-"`
	Reason          string          `json:"-"`
}

// OrderEvent is published after an order or its platform status changes.
type OrderEvent struct {
	Type            string    `json:"type"`
	TenantID        string    `json:"tenant_id"`
	OrderID         string    `json:"order_id"`
	Platform        string    `json:"platform"`
	ExternalOrderID string    `json:"external_order_id"`
	PlatformStatus  string    `json:"platform_status,omitempty"`
	Total           string    `json:"total,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Ingester turns authenticated webhook bodies into orders. It never calls
// the POS; the push is queued.
type Ingester struct {
	DB          *gorm.DB
	Repos       *repository.Repositories
	Quota       QuotaChecker
	Queue       queue.Queue
	Events      lib.EventPublisher
	Topic       string
	MaxAttempts int
	Now         func() time.Time
}

// Ingest applies one delivery. The int is the HTTP status for the caller; an
// error means nothing could be recorded.
func (i *Ingester) Ingest(ctx context.Context, tenant *models.Tenant, platform webhooks.Platform, body []byte, requestID string) (*IngestResult, int, error) {
	ev, err := platform.Parser.Parse(body)
	if err != nil {
		extID, event := webhooks.Sniff(platform.Name, body)
		entry := &models.WebhookLog{
			Platform:        platform.Name,
			Event:           event,
			ExternalOrderID: extID,
			Status:          types.LOG_FAILED,
			HTTPStatus:      http.StatusBadRequest,
			Error:           err.Error(),
			RawPayload:      string(body),
			RequestID:       requestID,
		}
		return i.record(ctx, tenant, entry, "malformed", nil, err.Error())
	}

	entry := &models.WebhookLog{
		Platform:        platform.Name,
		Event:           ev.Event,
		ExternalOrderID: ev.ExternalOrderID,
		RawPayload:      string(body),
		RequestID:       requestID,
	}
	if ev.Kind == webhooks.EventUpdate {
		return i.applyUpdate(ctx, tenant, ev, entry)
	}
	return i.create(ctx, tenant, ev, entry)
}

func (i *Ingester) create(ctx context.Context, tenant *models.Tenant, ev *webhooks.NormalizedEvent, entry *models.WebhookLog) (*IngestResult, int, error) {
	existing, err := i.Repos.Orders.FindByExternalID(ctx, tenant.ID, ev.Platform, ev.ExternalOrderID)
	switch {
	case err == nil:
		return i.duplicate(ctx, tenant, entry, existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, http.StatusInternalServerError, err
	}

	if i.Quota != nil {
		if err := i.Quota.Check(ctx, tenant); err != nil {
			if !errors.Is(err, billing.ErrQuotaExceeded) {
				return nil, http.StatusInternalServerError, err
			}
			return i.overQuota(ctx, tenant, entry, err)
		}
	}

	order := toOrder(ev)
	now := i.now()
	dbq, inTx := i.Queue.(*queue.DBQueue)
	err = i.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := i.Repos.Orders.WithTx(tx).Create(ctx, tenant.ID, order); err != nil {
			return err
		}
		entry.OrderID = &order.ID
		entry.Status = types.LOG_SUCCESS
		entry.HTTPStatus = http.StatusOK
		if err := i.Repos.WebhookLogs.WithTx(tx).Append(ctx, tenant.ID, entry); err != nil {
			return err
		}
		if err := i.Repos.Billing.WithTx(tx).IncrementUsage(ctx, tenant.ID, models.UsagePeriod(now)); err != nil {
			return err
		}
		if i.Quota != nil {
			if err := i.Quota.Admit(ctx, tx, tenant); err != nil {
				return err
			}
		}
		if inTx {
			if _, err := dbq.WithTx(tx).Enqueue(ctx, i.pushTask(tenant.ID, order.ID)); err != nil {
				return fmt.Errorf("enqueue pos push: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// lost the insert race to a concurrent delivery of the same order
		entry.ID = uuid.Nil
		entry.OrderID = nil
		var winner uuid.UUID
		if o, ferr := i.Repos.Orders.FindByExternalID(ctx, tenant.ID, ev.Platform, ev.ExternalOrderID); ferr == nil {
			winner = o.ID
		}
		return i.duplicate(ctx, tenant, entry, winner)
	}
	if errors.Is(err, billing.ErrQuotaExceeded) {
		entry.ID = uuid.Nil
		entry.OrderID = nil
		return i.overQuota(ctx, tenant, entry, err)
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	log := lib.LoggerFromContext(ctx)
	if !inTx && i.Queue != nil {
		// the stale pending sweep re-enqueues if this fails
		if _, err := i.Queue.Enqueue(ctx, i.pushTask(tenant.ID, order.ID)); err != nil {
			log.Warn("enqueue pos push failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		} else if err := i.Repos.Orders.MarkQueued(ctx, tenant.ID, order.ID, now); err != nil {
			log.Warn("stamp queued push failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	i.publish(ctx, "order.ingested", tenant.ID, order, ev.PlatformStatus)
	lib.WebhookCounter.WithLabelValues(string(ev.Platform), "accepted").Inc()
	log.Info("order ingested",
		zap.String("platform", string(ev.Platform)),
		zap.String("external_order_id", ev.ExternalOrderID),
		zap.String("order_id", order.ID.String()),
	)
	return &IngestResult{Outcome: types.LOG_SUCCESS, Status: "accepted", OrderID: &order.ID, ExternalOrderID: ev.ExternalOrderID}, http.StatusOK, nil
}

func (i *Ingester) applyUpdate(ctx context.Context, tenant *models.Tenant, ev *webhooks.NormalizedEvent, entry *models.WebhookLog) (*IngestResult, int, error) {
	order, err := i.Repos.Orders.FindByExternalID(ctx, tenant.ID, ev.Platform, ev.ExternalOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		entry.Status = types.LOG_FAILED
		entry.HTTPStatus = http.StatusNotFound
		entry.Error = "order not found"
		return i.record(ctx, tenant, entry, "unknown_order", nil, entry.Error)
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	changed, err := i.Repos.Orders.UpdatePlatformStatus(ctx, tenant.ID, order.ID, ev.PlatformStatus)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if !changed {
		return i.duplicate(ctx, tenant, entry, order.ID)
	}
	entry.OrderID = &order.ID
	entry.Status = types.LOG_SUCCESS
	entry.HTTPStatus = http.StatusOK
	if err := i.Repos.WebhookLogs.Append(ctx, tenant.ID, entry); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	i.publish(ctx, "order.status_changed", tenant.ID, order, ev.PlatformStatus)
	lib.WebhookCounter.WithLabelValues(string(ev.Platform), "updated").Inc()
	return &IngestResult{Outcome: types.LOG_SUCCESS, Status: "accepted", OrderID: &order.ID, ExternalOrderID: ev.ExternalOrderID}, http.StatusOK, nil
}

func (i *Ingester) duplicate(ctx context.Context, tenant *models.Tenant, entry *models.WebhookLog, orderID uuid.UUID) (*IngestResult, int, error) {
	entry.Status = types.LOG_DUPLICATE
	entry.HTTPStatus = http.StatusOK
	var ref *uuid.UUID
	if orderID != uuid.Nil {
		ref = &orderID
		entry.OrderID = ref
	}
	return i.record(ctx, tenant, entry, "duplicate", ref, "")
}

func (i *Ingester) overQuota(ctx context.Context, tenant *models.Tenant, entry *models.WebhookLog, err error) (*IngestResult, int, error) {
	entry.Status = types.LOG_FAILED
	entry.HTTPStatus = http.StatusTooManyRequests
	entry.Error = err.Error()
	return i.record(ctx, tenant, entry, "quota", nil, err.Error())
}

// record appends a log row for an outcome that created nothing.
func (i *Ingester) record(ctx context.Context, tenant *models.Tenant, entry *models.WebhookLog, outcome string, orderID *uuid.UUID, reason string) (*IngestResult, int, error) {
	if err := i.Repos.WebhookLogs.Append(ctx, tenant.ID, entry); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	lib.WebhookCounter.WithLabelValues(string(entry.Platform), outcome).Inc()
	res := &IngestResult{
		Outcome:         entry.Status,
		Status:          string(entry.Status),
		OrderID:         orderID,
		ExternalOrderID: entry.ExternalOrderID,
		Reason:          reason,
	}
	if entry.Status == types.LOG_FAILED {
		res.Status = "rejected"
	}
	return res, entry.HTTPStatus, nil
}

func (i *Ingester) pushTask(tenantID, orderID uuid.UUID) queue.Task {
	return queue.Task{
		TenantID:    tenantID,
		Kind:        types.TaskKindPOSPush,
		Reference:   orderID.String(),
		Payload:     map[string]any{"order_id": orderID.String()},
		MaxAttempts: i.MaxAttempts,
	}
}

func (i *Ingester) publish(ctx context.Context, kind string, tenantID uuid.UUID, order *models.Order, platformStatus string) {
	if i.Events == nil || i.Topic == "" {
		return
	}
	ev := OrderEvent{
		Type:            kind,
		TenantID:        tenantID.String(),
		OrderID:         order.ID.String(),
		Platform:        string(order.Platform),
		ExternalOrderID: order.ExternalOrderID,
		PlatformStatus:  platformStatus,
		Currency:        order.Currency,
		OccurredAt:      i.now(),
	}
	if !order.Total.IsZero() {
		ev.Total = order.Total.StringFixed(2)
	}
	if err := i.Events.Publish(ctx, i.Topic, tenantID.String(), ev); err != nil {
		lib.LoggerFromContext(ctx).Warn("publish order event failed", zap.String("type", kind), zap.Error(err))
	}
}

func (i *Ingester) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now().UTC()
}

func toOrder(ev *webhooks.NormalizedEvent) *models.Order {
	n := ev.Order
	order := &models.Order{
		Platform:        ev.Platform,
		ExternalOrderID: ev.ExternalOrderID,
		Status:          types.ORDER_PENDING,
		PlatformStatus:  ev.PlatformStatus,
		Currency:        n.Currency,
		Subtotal:        n.Subtotal,
		DeliveryFee:     n.DeliveryFee,
		Discount:        n.Discount,
		Total:           n.Total,
		CustomerName:    n.CustomerName,
		CustomerPhone:   n.CustomerPhone,
		DeliveryAddress: n.DeliveryAddress,
		Notes:           n.Notes,
		PlacedAt:        n.PlacedAt,
		PosOrder: &models.PosOrder{
			Provider:   types.SERVICE_LOYVERSE,
			SyncStatus: types.POS_SYNC_FAILED,
		},
	}
	order.Items = make([]models.OrderItem, 0, len(n.Items))
	for _, it := range n.Items {
		order.Items = append(order.Items, models.OrderItem{
			ExternalItemID: it.ExternalID,
			PosVariantID:   it.PosVariantID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TotalPrice:     it.Total,
			Options:        datatypes.JSON(it.Options),
		})
	}
	return order
}
