package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"menusync/src/lib"
	"menusync/src/lib/pos"
	"menusync/src/models"
	"menusync/src/queue"
	"menusync/src/repository"
	"menusync/src/tenancy"
	"menusync/src/types"
	"menusync/src/webhooks"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrAlreadySynced  = errors.New("order already synced")
	ErrMissingPOSAuth = errors.New("no active loyverse access token")
	ErrPushPending    = errors.New("order push already queued or in flight")
)

// claimMargin pads the push lease past the POS call timeout.
const claimMargin = 30 * time.Second

type ReceiptPusher interface {
	PushOrder(ctx context.Context, token string, in pos.ReceiptRequest) (*pos.Receipt, string, error)
}

// Syncer pushes ingested orders to the POS and keeps the bookkeeping.
type Syncer struct {
	DB          *gorm.DB
	Repos       *repository.Repositories
	Credentials webhooks.CredentialSource
	POS         ReceiptPusher
	Queue       queue.Queue
	Timeout     time.Duration
	MaxAttempts int
	// QueuedWindow is how long a queued push blocks Retry on queues that
	// cannot report open tasks.
	QueuedWindow time.Duration
	Now          func() time.Time
}

// HandleTask is the worker entry point for pos.push tasks.
func (s *Syncer) HandleTask(ctx context.Context, lease *queue.Lease) error {
	orderID, err := uuid.Parse(lease.Task.Str("order_id"))
	if err != nil {
		lib.LoggerFromContext(ctx).Error("dropping pos.push task without order id", zap.String("task_id", lease.Task.ID))
		return nil
	}
	tenant, err := s.Repos.Tenants.FindByID(ctx, lease.Task.TenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !tenant.IsActive() {
		lib.LoggerFromContext(ctx).Info("skipping pos push for inactive tenant", zap.String("tenant_id", tenant.ID.String()))
		return nil
	}
	return tenancy.RunAs(ctx, tenant, func(ctx context.Context) error {
		return s.Push(ctx, tenant.ID, orderID)
	})
}

// Push sends one order to the POS. No transaction is open during the call;
// a claim on the POS mirror keeps concurrent pushes of the same order out.
// A failure is recorded on the order and returned so the queue backs off.
func (s *Syncer) Push(ctx context.Context, tenantID, orderID uuid.UUID) error {
	log := lib.LoggerFromContext(ctx).With(zap.String("order_id", orderID.String()))
	order, err := s.Repos.Orders.Find(ctx, tenantID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("pos push for missing order")
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status == types.ORDER_SYNCED {
		return nil
	}
	attempt := 1
	if order.PosOrder != nil {
		attempt = order.PosOrder.Attempts + 1
	}
	claimed := s.now()
	won, err := s.Repos.Orders.ClaimPush(ctx, tenantID, orderID, uuid.NewString(), claimed, claimed.Add(s.timeout()+claimMargin))
	if err != nil {
		return err
	}
	if !won {
		log.Info("pos push already in flight")
		return nil
	}

	req := receiptFor(order)
	snapshot, _ := json.Marshal(req)

	token, err := s.Credentials.Reveal(ctx, tenantID, types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN)
	if errors.Is(err, repository.ErrNotFound) {
		err = ErrMissingPOSAuth
	}
	var (
		receipt *pos.Receipt
		raw     string
		elapsed time.Duration
	)
	if err == nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout())
		started := time.Now()
		receipt, raw, err = s.POS.PushOrder(callCtx, token, req)
		elapsed = time.Since(started)
		cancel()
		lib.PosSyncDuration.WithLabelValues(string(types.SERVICE_LOYVERSE)).Observe(elapsed.Seconds())
	}

	now := s.now()
	entry := &models.SyncLog{
		OrderID:    orderID,
		Provider:   types.SERVICE_LOYVERSE,
		Attempt:    attempt,
		Request:    string(snapshot),
		Response:   raw,
		DurationMs: elapsed.Milliseconds(),
	}
	pushErr := err
	// the POS has answered; record it even if the caller gave up meanwhile
	bookCtx := context.WithoutCancel(ctx)
	err = s.DB.WithContext(bookCtx).Transaction(func(tx *gorm.DB) error {
		if pushErr != nil {
			entry.Status = types.LOG_FAILED
			entry.Error = pushErr.Error()
			response := raw
			if response == "" {
				response = pushErr.Error()
			}
			if err := s.Repos.Orders.WithTx(tx).MarkFailed(bookCtx, tenantID, orderID, pushErr.Error(), response, now); err != nil {
				return err
			}
		} else {
			entry.Status = types.LOG_SUCCESS
			if err := s.Repos.Orders.WithTx(tx).MarkSynced(bookCtx, tenantID, orderID, receipt.ReceiptNumber, raw, now); err != nil {
				return err
			}
		}
		return s.Repos.SyncLogs.WithTx(tx).Append(bookCtx, tenantID, entry)
	})
	if err != nil {
		return fmt.Errorf("record pos sync: %w", err)
	}

	if pushErr != nil {
		lib.PosSyncCounter.WithLabelValues(string(types.SERVICE_LOYVERSE), "failed").Inc()
		log.Warn("pos push failed", zap.Int("attempt", attempt), zap.Error(pushErr))
		return pushErr
	}
	lib.PosSyncCounter.WithLabelValues(string(types.SERVICE_LOYVERSE), "synced").Inc()
	log.Info("order synced", zap.String("receipt", receipt.ReceiptNumber), zap.Duration("took", elapsed))
	return nil
}

// Retry queues another push for an order that is not yet synced. A push
// still waiting out its backoff is brought forward instead of duplicated; one
// that is running refuses with ErrPushPending.
func (s *Syncer) Retry(ctx context.Context, tenantID, orderID uuid.UUID) (string, error) {
	return s.requeue(ctx, tenantID, orderID, true)
}

type openTasks interface {
	HasOpen(ctx context.Context, kind, reference string) (bool, error)
	Expedite(ctx context.Context, kind, reference string) (string, error)
}

func (s *Syncer) requeue(ctx context.Context, tenantID, orderID uuid.UUID, expedite bool) (string, error) {
	order, err := s.Repos.Orders.Find(ctx, tenantID, orderID)
	if err != nil {
		return "", err
	}
	if order.Status == types.ORDER_SYNCED {
		return "", ErrAlreadySynced
	}
	if expedite {
		if q, ok := s.Queue.(openTasks); ok && !s.claimed(order) {
			id, err := q.Expedite(ctx, types.TaskKindPOSPush, orderID.String())
			if err != nil {
				return "", err
			}
			if id != "" {
				return id, nil
			}
		}
	}
	pending, err := s.pushPending(ctx, order)
	if err != nil {
		return "", err
	}
	if pending {
		return "", ErrPushPending
	}
	id, err := s.Queue.Enqueue(ctx, queue.Task{
		TenantID:    tenantID,
		Kind:        types.TaskKindPOSPush,
		Reference:   orderID.String(),
		Payload:     map[string]any{"order_id": orderID.String()},
		MaxAttempts: s.MaxAttempts,
	})
	if err != nil {
		return "", err
	}
	if err := s.Repos.Orders.MarkQueued(ctx, tenantID, orderID, s.now()); err != nil {
		lib.LoggerFromContext(ctx).Warn("stamp queued push failed", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	return id, nil
}

func (s *Syncer) claimed(order *models.Order) bool {
	p := order.PosOrder
	return p != nil && p.ClaimedUntil != nil && p.ClaimedUntil.After(s.now())
}

// pushPending reports a live claim, an open task on queues that can list
// them, or a recent enqueue stamp on queues that cannot.
func (s *Syncer) pushPending(ctx context.Context, order *models.Order) (bool, error) {
	if s.claimed(order) {
		return true, nil
	}
	if checker, ok := s.Queue.(openTasks); ok {
		return checker.HasOpen(ctx, types.TaskKindPOSPush, order.ID.String())
	}
	p := order.PosOrder
	return p != nil && p.QueuedAt != nil && s.now().Sub(*p.QueuedAt) < s.queuedWindow(), nil
}

// SweepStalePending re-enqueues orders that have sat pending since before
// cutoff with no queued or running push.
func (s *Syncer) SweepStalePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	orders, err := s.Repos.Orders.ListStalePendingAllTenants(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orders {
		if _, err := s.requeue(ctx, o.TenantID, o.ID, false); err != nil {
			if errors.Is(err, ErrAlreadySynced) || errors.Is(err, ErrPushPending) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Syncer) queuedWindow() time.Duration {
	if s.QueuedWindow > 0 {
		return s.QueuedWindow
	}
	return 15 * time.Minute
}

func (s *Syncer) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 10 * time.Second
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func receiptFor(o *models.Order) pos.ReceiptRequest {
	req := pos.ReceiptRequest{
		ExternalID: o.ExternalOrderID,
		Source:     string(o.Platform),
		Note:       o.Notes,
		TotalMoney: o.Total,
	}
	if o.PlacedAt != nil {
		req.ReceiptDate = o.PlacedAt.UTC()
	} else {
		req.ReceiptDate = o.CreatedAt.UTC()
	}
	for _, it := range o.Items {
		req.LineItems = append(req.LineItems, pos.ReceiptLine{
			VariantID: it.PosVariantID,
			ItemName:  it.Name,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
		})
	}
	return req
}
