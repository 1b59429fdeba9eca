package repository

import (
	"context"
	"menusync/src/models"
	"menusync/src/models/scopes"
	"menusync/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BillingRepository struct {
	DB *gorm.DB
	guard
}

func (r *BillingRepository) WithTx(tx *gorm.DB) *BillingRepository {
	return &BillingRepository{DB: tx, guard: r.guard}
}

// ActiveSubscription returns the tenant's active subscription with its plan.
func (r *BillingRepository) ActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("status = ?", types.SUBSCRIPTION_ACTIVE).
		Preload("Plan").
		Order("created_at desc").
		First(&sub).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r *BillingRepository) Usage(ctx context.Context, tenantID uuid.UUID, period string) (int, error) {
	var usage models.SubscriptionUsage
	err := session(ctx, r.DB).
		Scopes(scopes.ForTenant(tenantID)).
		Where("period = ?", period).
		Limit(1).
		Find(&usage).
		Error
	return usage.OrdersCount, translate(err)
}

// IncrementUsage bumps the order counter for the period, creating the row on
// first use.
func (r *BillingRepository) IncrementUsage(ctx context.Context, tenantID uuid.UUID, period string) error {
	usage := &models.SubscriptionUsage{TenantID: tenantID, Period: period, OrdersCount: 1}
	return translate(session(ctx, r.DB).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]any{
				"orders_count": gorm.Expr("subscription_usages.orders_count + 1"),
				"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).
		Create(usage).
		Error)
}

func (r *BillingRepository) CreatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	return translate(session(ctx, r.DB).Create(plan).Error)
}

func (r *BillingRepository) Subscribe(ctx context.Context, tenantID uuid.UUID, sub *models.Subscription) error {
	if err := r.own(tenantID, sub.TenantID); err != nil {
		return err
	}
	sub.TenantID = tenantID
	if sub.Status == "" {
		sub.Status = types.SUBSCRIPTION_ACTIVE
	}
	return translate(session(ctx, r.DB).Create(sub).Error)
}
