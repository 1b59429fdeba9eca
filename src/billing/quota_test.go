package billing

import (
	"context"
	"testing"
	"time"

	"menusync/src/db/dbtest"
	"menusync/src/models"
	"menusync/src/repository"

	"github.com/stretchr/testify/suite"
)

type QuotaTestSuite struct {
	suite.Suite
	repos   *repository.Repositories
	checker *QuotaChecker
	tenant  *models.Tenant
	ctx     context.Context
}

func (s *QuotaTestSuite) SetupTest() {
	gdb := dbtest.New(s.T())
	s.repos = repository.New(gdb, true)
	s.checker = NewQuotaChecker(s.repos.Billing)
	s.tenant = dbtest.SeedTenant(s.T(), gdb, "acme")
	s.ctx = context.Background()
}

func (s *QuotaTestSuite) subscribe(limit int) {
	plan := &models.SubscriptionPlan{Name: "plan", MonthlyOrderLimit: limit}
	s.Require().NoError(s.repos.Billing.CreatePlan(s.ctx, plan))
	s.Require().NoError(s.repos.Billing.Subscribe(s.ctx, s.tenant.ID, &models.Subscription{PlanID: plan.ID}))
}

func (s *QuotaTestSuite) TestTrialAlwaysAllowed() {
	until := time.Now().Add(24 * time.Hour)
	s.tenant.TrialEndsAt = &until
	s.NoError(s.checker.Check(s.ctx, s.tenant))
}

func (s *QuotaTestSuite) TestNoSubscriptionAfterTrialDenied() {
	ended := time.Now().Add(-time.Hour)
	s.tenant.TrialEndsAt = &ended
	s.ErrorIs(s.checker.Check(s.ctx, s.tenant), ErrQuotaExceeded)
}

func (s *QuotaTestSuite) TestUnlimitedPlan() {
	s.subscribe(0)
	s.NoError(s.checker.Check(s.ctx, s.tenant))
}

func (s *QuotaTestSuite) TestLimitReached() {
	s.subscribe(2)
	period := models.UsagePeriod(time.Now())
	s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.tenant.ID, period))
	s.NoError(s.checker.Check(s.ctx, s.tenant))
	s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.tenant.ID, period))
	s.ErrorIs(s.checker.Check(s.ctx, s.tenant), ErrQuotaExceeded)
}

func (s *QuotaTestSuite) TestAdmitCountsTheNewOrder() {
	s.subscribe(2)
	period := models.UsagePeriod(time.Now())
	s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.tenant.ID, period))
	s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.tenant.ID, period))

	// usage already includes the order being admitted
	tx := s.repos.Billing.DB.Begin()
	defer tx.Rollback()
	s.NoError(s.checker.Admit(s.ctx, tx, s.tenant))

	s.Require().NoError(s.repos.Billing.WithTx(tx).IncrementUsage(s.ctx, s.tenant.ID, period))
	s.ErrorIs(s.checker.Admit(s.ctx, tx, s.tenant), ErrQuotaExceeded)
}

func TestQuotaTestSuite(t *testing.T) {
	suite.Run(t, new(QuotaTestSuite))
}
