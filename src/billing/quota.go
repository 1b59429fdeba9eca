package billing

import (
	"context"
	"errors"
	"time"

	"menusync/src/models"
	"menusync/src/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrQuotaExceeded = errors.New("order quota exceeded")

type store interface {
	ActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Usage(ctx context.Context, tenantID uuid.UUID, period string) (int, error)
}

// QuotaChecker answers whether a tenant may ingest another order this month.
type QuotaChecker struct {
	Store store
	Now   func() time.Time
}

func NewQuotaChecker(s store) *QuotaChecker {
	return &QuotaChecker{Store: s, Now: time.Now}
}

func (q *QuotaChecker) Check(ctx context.Context, tenant *models.Tenant) error {
	return q.check(ctx, q.Store, tenant, 0)
}

// Admit re-checks on tx after the new order was added to this month's usage.
func (q *QuotaChecker) Admit(ctx context.Context, tx *gorm.DB, tenant *models.Tenant) error {
	s := q.Store
	if r, ok := s.(*repository.BillingRepository); ok {
		s = r.WithTx(tx)
	}
	return q.check(ctx, s, tenant, 1)
}

// check compares usage, less the orders already counted, to the plan limit.
func (q *QuotaChecker) check(ctx context.Context, s store, tenant *models.Tenant, counted int) error {
	now := q.Now().UTC()
	if tenant.InTrial(now) {
		return nil
	}
	sub, err := s.ActiveSubscription(ctx, tenant.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrQuotaExceeded
	}
	if err != nil {
		return err
	}
	if sub.Plan == nil || sub.Plan.MonthlyOrderLimit <= 0 {
		return nil
	}
	used, err := s.Usage(ctx, tenant.ID, models.UsagePeriod(now))
	if err != nil {
		return err
	}
	if used-counted >= sub.Plan.MonthlyOrderLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// Unlimited admits every order. Used where billing is not wired.
type Unlimited struct{}

func (Unlimited) Check(context.Context, *models.Tenant) error { return nil }

func (Unlimited) Admit(context.Context, *gorm.DB, *models.Tenant) error { return nil }
