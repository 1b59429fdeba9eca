package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"menusync/src/common"
	"menusync/src/db/dbtest"
	"menusync/src/lib/pos"
	"menusync/src/middlewares"
	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type stubItems struct {
	items []pos.Item
	err   error
	token string
}

func (s *stubItems) FetchItems(_ context.Context, token string) ([]pos.Item, error) {
	s.token = token
	return s.items, s.err
}

type recordingPlatform struct {
	creds    pos.CatalogCredentials
	menu     []pos.MenuItem
	statuses map[string]string
	err      error
}

func (r *recordingPlatform) PushMenu(_ context.Context, items []pos.MenuItem) error {
	r.menu = items
	return r.err
}

func (r *recordingPlatform) FetchItems(context.Context) ([]pos.MenuItem, error) {
	return r.menu, r.err
}

func (r *recordingPlatform) PushOrderStatus(_ context.Context, externalID, status string) error {
	if r.err != nil {
		return r.err
	}
	r.statuses[externalID] = status
	return nil
}

type CatalogTestSuite struct {
	suite.Suite
	repos   *repository.Repositories
	vault   *common.Vault
	items   *stubItems
	pusher  *recordingPlatform
	catalog *Catalog
	tenant  *models.Tenant
}

func (s *CatalogTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	gdb := dbtest.New(s.T())
	repos := repository.New(gdb, true)
	s.repos = repos
	vault, err := common.NewVault(repos.Credentials, make([]byte, 32))
	s.Require().NoError(err)
	s.vault = vault
	s.tenant = dbtest.SeedTenant(s.T(), gdb, "acme")

	s.items = &stubItems{items: []pos.Item{
		{ID: "i1", ItemName: "Shawarma", Variants: []pos.Variant{{VariantID: "v1", DefaultPrice: decimal.RequireFromString("18.5")}}},
		{ID: "i2", ItemName: "Juice", Variants: []pos.Variant{
			{VariantID: "v2", SKU: "S", DefaultPrice: decimal.NewFromInt(10)},
			{VariantID: "v3", SKU: "L", DefaultPrice: decimal.NewFromInt(14)},
		}},
	}}
	s.pusher = &recordingPlatform{statuses: map[string]string{}}
	s.catalog = &Catalog{
		Vault:     vault,
		Orders:    repos.Orders,
		POS:       s.items,
		Endpoints: map[types.Platform]CatalogEndpoint{types.PLATFORM_CAREEM: {BaseURL: "http://careem.invalid", TokenURL: "http://careem.invalid/token"}},
		Timeout:   time.Second,
		NewClient: func(_ context.Context, _ CatalogEndpoint, creds pos.CatalogCredentials, _ time.Duration) PlatformCatalog {
			s.pusher.creds = creds
			return s.pusher
		},
	}
}

func (s *CatalogTestSuite) context(platform string) *gin.Context {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/api/v1/catalog/"+platform+"/push-menu", nil)
	ctx.Params = gin.Params{{Key: "platform", Value: platform}}
	middlewares.SetTenant(ctx, s.tenant)
	return ctx
}

func (s *CatalogTestSuite) store(service types.Service, kind types.CredentialType, value, secret string) {
	_, err := s.vault.Store(context.Background(), s.tenant.ID, service, kind, value, secret)
	s.Require().NoError(err)
}

func (s *CatalogTestSuite) TestPushMenu() {
	s.store(types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN, "lv-token", "")
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")

	res, status, err := s.catalog.PushMenu(s.context("careem"))
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(3, res.Pushed)
	s.Equal("lv-token", s.items.token)
	s.Equal(pos.CatalogCredentials{ClientID: "client-1", ClientSecret: "secret-1", TokenURL: "http://careem.invalid/token"}, s.pusher.creds)
	s.Equal("Juice (L)", s.pusher.menu[2].Name)
}

func (s *CatalogTestSuite) TestPushMenuWithoutPlatformCredentials() {
	s.store(types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN, "lv-token", "")

	_, status, err := s.catalog.PushMenu(s.context("careem"))
	s.ErrorIs(err, ErrCatalogNotConfigured)
	s.Equal(http.StatusUnprocessableEntity, status)
	s.Nil(s.pusher.menu)
}

func (s *CatalogTestSuite) TestPushMenuWithoutPOSToken() {
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")

	_, status, err := s.catalog.PushMenu(s.context("careem"))
	s.ErrorIs(err, common.ErrMissingPOSAuth)
	s.Equal(http.StatusUnprocessableEntity, status)
}

func (s *CatalogTestSuite) TestPushMenuUpstreamFailure() {
	s.store(types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN, "lv-token", "")
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")
	s.pusher.err = errors.New("connection reset")

	_, status, err := s.catalog.PushMenu(s.context("careem"))
	s.Error(err)
	s.Equal(http.StatusBadGateway, status)
}

func (s *CatalogTestSuite) TestPushMenuUnconfiguredPlatform() {
	_, status, err := s.catalog.PushMenu(s.context("talabat"))
	s.Error(err)
	s.Equal(http.StatusNotFound, status)
}

func (s *CatalogTestSuite) TestPlatformItems() {
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")
	s.pusher.menu = []pos.MenuItem{{ID: "v1", Name: "Shawarma", Available: true}}

	ctx := s.context("careem")
	ctx.Request.Method = http.MethodGet
	items, status, err := s.catalog.PlatformItems(ctx)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Len(items, 1)
}

func (s *CatalogTestSuite) order() *models.Order {
	o := &models.Order{Platform: types.PLATFORM_CAREEM, ExternalOrderID: "C-77", Status: types.ORDER_SYNCED}
	s.Require().NoError(s.repos.Orders.Create(context.Background(), s.tenant.ID, o))
	return o
}

func (s *CatalogTestSuite) statusContext(id, body string) *gin.Context {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+id+"/platform-status", strings.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	ctx.Params = gin.Params{{Key: "id", Value: id}}
	middlewares.SetTenant(ctx, s.tenant)
	return ctx
}

func (s *CatalogTestSuite) TestPushOrderStatus() {
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")
	o := s.order()

	res, status, err := s.catalog.PushOrderStatus(s.statusContext(o.ID.String(), `{"status":"accepted"}`))
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal("accepted", res.PlatformStatus)
	s.Equal("accepted", s.pusher.statuses["C-77"])

	stored, err := s.repos.Orders.Find(context.Background(), s.tenant.ID, o.ID)
	s.Require().NoError(err)
	s.Equal("accepted", stored.PlatformStatus)
}

func (s *CatalogTestSuite) TestPushOrderStatusFailureKeepsStoredStatus() {
	s.store(types.SERVICE_CAREEM, types.CREDENTIAL_OAUTH_CLIENT, "client-1", "secret-1")
	o := s.order()
	s.pusher.err = &pos.APIError{Status: http.StatusServiceUnavailable}

	_, status, err := s.catalog.PushOrderStatus(s.statusContext(o.ID.String(), `{"status":"accepted"}`))
	s.Error(err)
	s.Equal(http.StatusBadGateway, status)

	stored, err := s.repos.Orders.Find(context.Background(), s.tenant.ID, o.ID)
	s.Require().NoError(err)
	s.Empty(stored.PlatformStatus)
}

func (s *CatalogTestSuite) TestPushOrderStatusValidation() {
	o := s.order()

	_, status, _ := s.catalog.PushOrderStatus(s.statusContext(o.ID.String(), `{"status":"teleported"}`))
	s.Equal(http.StatusBadRequest, status)

	_, status, _ = s.catalog.PushOrderStatus(s.statusContext("4f9c2b36-6d1e-4f6a-9d0e-0b6f3c1a2b3c", `{"status":"accepted"}`))
	s.Equal(http.StatusNotFound, status)
}

func TestCatalogTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}

func TestCatalogStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, catalogStatus(common.ErrMissingPOSAuth))
	assert.Equal(t, http.StatusBadGateway, catalogStatus(&pos.APIError{Status: http.StatusUnauthorized}))
	assert.Equal(t, http.StatusInternalServerError, catalogStatus(errors.New("boom")))
}
