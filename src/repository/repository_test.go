package repository

import (
	"context"
	"errors"
	"fmt"
	"menusync/src/db/dbtest"
	"menusync/src/models"
	"menusync/src/types"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	repos *Repositories
	acme  *models.Tenant
	other *models.Tenant
	ctx   context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = dbtest.New(s.T())
	s.repos = New(s.db, false)
	s.acme = dbtest.SeedTenant(s.T(), s.db, "acme")
	s.other = dbtest.SeedTenant(s.T(), s.db, "globex")
	s.ctx = context.Background()
}

func newOrder(externalID string) *models.Order {
	return &models.Order{
		Platform:        types.PLATFORM_CAREEM,
		ExternalOrderID: externalID,
		Currency:        "AED",
		Subtotal:        decimal.RequireFromString("20"),
		DeliveryFee:     decimal.Zero,
		Discount:        decimal.Zero,
		Total:           decimal.RequireFromString("20"),
		Items: []models.OrderItem{{
			Name:       "Shawarma",
			Quantity:   2,
			UnitPrice:  decimal.RequireFromString("10"),
			TotalPrice: decimal.RequireFromString("20"),
		}},
		PosOrder: &models.PosOrder{Provider: types.SERVICE_LOYVERSE},
	}
}

func (s *RepositoryTestSuite) TestCreateStampsTenantOnChildren() {
	order := newOrder("C-1")
	s.Require().NoError(s.repos.Orders.Create(s.ctx, s.acme.ID, order))

	found, err := s.repos.Orders.Find(s.ctx, s.acme.ID, order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_PENDING, found.Status)
	s.Require().Len(found.Items, 1)
	s.Equal(s.acme.ID, found.Items[0].TenantID)
	s.Require().NotNil(found.PosOrder)
	s.Equal(types.POS_SYNC_FAILED, found.PosOrder.SyncStatus)
}

func (s *RepositoryTestSuite) TestDuplicateExternalIDIsRejected() {
	s.Require().NoError(s.repos.Orders.Create(s.ctx, s.acme.ID, newOrder("C-1")))
	err := s.repos.Orders.Create(s.ctx, s.acme.ID, newOrder("C-1"))
	s.True(errors.Is(err, ErrDuplicate))

	// the same external id is independent across tenants
	s.NoError(s.repos.Orders.Create(s.ctx, s.other.ID, newOrder("C-1")))
}

func (s *RepositoryTestSuite) TestCrossTenantReadsAreEmpty() {
	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		order := newOrder(fmt.Sprintf("A-%d", i))
		s.Require().NoError(s.repos.Orders.Create(s.ctx, s.acme.ID, order))
		ids = append(ids, order.ID)
		s.Require().NoError(s.repos.WebhookLogs.Append(s.ctx, s.acme.ID, &models.WebhookLog{
			Platform: types.PLATFORM_CAREEM, Event: "order.created", Status: types.LOG_SUCCESS, ExternalOrderID: order.ExternalOrderID,
		}))
	}

	for _, id := range ids {
		_, err := s.repos.Orders.Find(s.ctx, s.other.ID, id)
		s.ErrorIs(err, ErrNotFound)
	}
	orders, err := s.repos.Orders.List(s.ctx, s.other.ID, "", 0, 0)
	s.NoError(err)
	s.Empty(orders)
	logs, err := s.repos.WebhookLogs.List(s.ctx, s.other.ID, "", 0, 0)
	s.NoError(err)
	s.Empty(logs)

	_, err = s.repos.Orders.UpdatePlatformStatus(s.ctx, s.other.ID, ids[0], "accepted")
	s.NoError(err)
	untouched, err := s.repos.Orders.Find(s.ctx, s.acme.ID, ids[0])
	s.Require().NoError(err)
	s.Empty(untouched.PlatformStatus)

	s.ErrorIs(s.repos.Orders.MarkSynced(s.ctx, s.other.ID, ids[0], "r-1", "{}", time.Now()), ErrNotFound)
}

func (s *RepositoryTestSuite) TestForeignOwnerIsNotFound() {
	order := newOrder("X-1")
	order.TenantID = s.other.ID
	err := s.repos.Orders.Create(s.ctx, s.acme.ID, order)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(err, ErrTenantMismatch)
}

func (s *RepositoryTestSuite) TestStrictModePanics() {
	strict := New(s.db, true)
	order := newOrder("X-2")
	order.TenantID = s.other.ID
	s.Panics(func() { _ = strict.Orders.Create(s.ctx, s.acme.ID, order) })
}

func (s *RepositoryTestSuite) TestMissingScopeIsRejected() {
	err := s.repos.WebhookLogs.Append(s.ctx, uuid.Nil, &models.WebhookLog{Platform: types.PLATFORM_CAREEM, Status: types.LOG_FAILED})
	s.ErrorIs(err, ErrTenantMismatch)
}

func (s *RepositoryTestSuite) TestMarkFailedThenSynced() {
	order := newOrder("C-9")
	s.Require().NoError(s.repos.Orders.Create(s.ctx, s.acme.ID, order))

	s.Require().NoError(s.repos.Orders.MarkFailed(s.ctx, s.acme.ID, order.ID, "pos timeout", "", time.Now()))
	failed, err := s.repos.Orders.ListFailed(s.ctx, s.acme.ID, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(failed, 1)
	s.Equal("pos timeout", failed[0].LastSyncError)

	all, err := s.repos.Orders.ListFailedAllTenants(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Len(all, 1)

	s.Require().NoError(s.repos.Orders.MarkSynced(s.ctx, s.acme.ID, order.ID, "receipt-1", `{"ok":true}`, time.Now()))
	synced, err := s.repos.Orders.Find(s.ctx, s.acme.ID, order.ID)
	s.Require().NoError(err)
	s.Equal(types.ORDER_SYNCED, synced.Status)
	s.Equal(types.POS_SYNC_SYNCED, synced.PosOrder.SyncStatus)
	s.Equal("receipt-1", synced.PosOrder.ExternalReceiptID)
	s.Equal(2, synced.PosOrder.Attempts)
	s.NotNil(synced.SyncedAt)
}

func (s *RepositoryTestSuite) TestUpdatePlatformStatusIsIdempotent() {
	order := newOrder("C-3")
	s.Require().NoError(s.repos.Orders.Create(s.ctx, s.acme.ID, order))

	changed, err := s.repos.Orders.UpdatePlatformStatus(s.ctx, s.acme.ID, order.ID, "accepted")
	s.NoError(err)
	s.True(changed)
	changed, err = s.repos.Orders.UpdatePlatformStatus(s.ctx, s.acme.ID, order.ID, "accepted")
	s.NoError(err)
	s.False(changed)
}

func (s *RepositoryTestSuite) TestCredentialUpsertRotates() {
	first, err := s.repos.Credentials.Upsert(s.ctx, s.acme.ID, &models.ApiCredential{
		Service: types.SERVICE_LOYVERSE, CredentialType: types.CREDENTIAL_ACCESS_TOKEN, EncryptedValue: "v1",
	})
	s.Require().NoError(err)
	second, err := s.repos.Credentials.Upsert(s.ctx, s.acme.ID, &models.ApiCredential{
		Service: types.SERVICE_LOYVERSE, CredentialType: types.CREDENTIAL_ACCESS_TOKEN, EncryptedValue: "v2",
	})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal("v2", second.EncryptedValue)

	list, err := s.repos.Credentials.List(s.ctx, s.acme.ID)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.repos.Credentials.Find(s.ctx, s.other.ID, types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN)
	s.ErrorIs(err, ErrNotFound)

	s.ErrorIs(s.repos.Credentials.Deactivate(s.ctx, s.other.ID, first.ID), ErrNotFound)
	s.Require().NoError(s.repos.Credentials.Deactivate(s.ctx, s.acme.ID, first.ID))
	_, err = s.repos.Credentials.Find(s.ctx, s.acme.ID, types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN)
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestUsageCounter() {
	period := models.UsagePeriod(time.Now())
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.repos.Billing.IncrementUsage(s.ctx, s.acme.ID, period))
	}
	count, err := s.repos.Billing.Usage(s.ctx, s.acme.ID, period)
	s.NoError(err)
	s.Equal(3, count)

	count, err = s.repos.Billing.Usage(s.ctx, s.other.ID, period)
	s.NoError(err)
	s.Zero(count)
}

func (s *RepositoryTestSuite) TestTenantLookup() {
	found, err := s.repos.Tenants.FindBySubdomain(s.ctx, "acme")
	s.Require().NoError(err)
	s.Equal(s.acme.ID, found.ID)

	_, err = s.repos.Tenants.FindBySubdomain(s.ctx, "nope")
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.repos.Tenants.UpdateStatus(s.ctx, s.acme.ID, types.TENANT_SUSPENDED))
	found, err = s.repos.Tenants.FindByID(s.ctx, s.acme.ID)
	s.Require().NoError(err)
	s.False(found.IsActive())

	err = s.repos.Tenants.Create(s.ctx, &models.Tenant{Name: "dup", Subdomain: "acme"})
	s.ErrorIs(err, ErrDuplicate)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
