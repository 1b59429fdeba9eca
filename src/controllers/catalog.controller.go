package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"menusync/src/common"
	"menusync/src/lib"
	"menusync/src/lib/pos"
	"menusync/src/middlewares"
	"menusync/src/repository"
	"menusync/src/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrCatalogNotConfigured = errors.New("catalog credentials are not configured")

type ItemFetcher interface {
	FetchItems(ctx context.Context, token string) ([]pos.Item, error)
}

// PlatformCatalog is a delivery platform's catalog and order-status API.
type PlatformCatalog interface {
	PushMenu(ctx context.Context, items []pos.MenuItem) error
	FetchItems(ctx context.Context) ([]pos.MenuItem, error)
	PushOrderStatus(ctx context.Context, externalID, status string) error
}

type CatalogEndpoint struct {
	BaseURL  string
	TokenURL string
}

type PushMenuResponse struct {
	Platform types.Platform `json:"platform"`
	Pushed   int            `json:"pushed"`
}

type OrderStatusResponse struct {
	OrderID        uuid.UUID      `json:"order_id"`
	Platform       types.Platform `json:"platform"`
	PlatformStatus string         `json:"platform_status"`
}

// Catalog reads the POS item catalog and publishes it to delivery
// platforms.
type Catalog struct {
	Vault     *common.Vault
	Orders    *repository.OrderRepository
	POS       ItemFetcher
	Endpoints map[types.Platform]CatalogEndpoint
	Timeout   time.Duration
	// NewClient builds the platform client; tests swap it.
	NewClient func(ctx context.Context, endpoint CatalogEndpoint, creds pos.CatalogCredentials, timeout time.Duration) PlatformCatalog
}

func (c *Catalog) Items(ctx *gin.Context) ([]pos.Item, int, error) {
	items, err := c.fetch(ctx.Request.Context(), middlewares.Tenant(ctx).ID)
	if err != nil {
		return nil, catalogStatus(err), err
	}
	return items, http.StatusOK, nil
}

// PushMenu copies the POS catalog to the platform named in the path using the
// tenant's oauth_client credential for that platform.
func (c *Catalog) PushMenu(ctx *gin.Context) (*PushMenuResponse, int, error) {
	var params types.PlatformURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	tenant := middlewares.Tenant(ctx)

	client, status, err := c.platform(reqCtx, tenant.ID, params.Platform)
	if err != nil {
		return nil, status, err
	}
	items, err := c.fetch(reqCtx, tenant.ID)
	if err != nil {
		return nil, catalogStatus(err), err
	}

	menu := menuFromItems(items)
	if err := client.PushMenu(reqCtx, menu); err != nil {
		lib.LoggerFromContext(reqCtx).Warn("menu push failed", zap.String("platform", string(params.Platform)), zap.Error(err))
		return nil, http.StatusBadGateway, err
	}
	return &PushMenuResponse{Platform: params.Platform, Pushed: len(menu)}, http.StatusOK, nil
}

// PlatformItems returns the menu as the platform currently publishes it.
func (c *Catalog) PlatformItems(ctx *gin.Context) ([]pos.MenuItem, int, error) {
	var params types.PlatformURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	client, status, err := c.platform(reqCtx, middlewares.Tenant(ctx).ID, params.Platform)
	if err != nil {
		return nil, status, err
	}
	items, err := client.FetchItems(reqCtx)
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	return items, http.StatusOK, nil
}

// PushOrderStatus reports an order's lifecycle status back to the platform it
// came from and records it as the order's platform status.
func (c *Catalog) PushOrderStatus(ctx *gin.Context) (*OrderStatusResponse, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.PushOrderStatusRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	reqCtx := ctx.Request.Context()
	tenant := middlewares.Tenant(ctx)

	order, err := c.Orders.Find(reqCtx, tenant.ID, uuid.MustParse(params.ID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	client, status, err := c.platform(reqCtx, tenant.ID, order.Platform)
	if err != nil {
		return nil, status, err
	}
	if err := client.PushOrderStatus(reqCtx, order.ExternalOrderID, body.Status); err != nil {
		lib.LoggerFromContext(reqCtx).Warn("order status push failed",
			zap.String("order_id", order.ID.String()),
			zap.String("platform", string(order.Platform)),
			zap.Error(err),
		)
		return nil, http.StatusBadGateway, err
	}
	if _, err := c.Orders.UpdatePlatformStatus(reqCtx, tenant.ID, order.ID, body.Status); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return &OrderStatusResponse{OrderID: order.ID, Platform: order.Platform, PlatformStatus: body.Status}, http.StatusOK, nil
}

// platform builds a client for the tenant's oauth_client credential on p.
func (c *Catalog) platform(ctx context.Context, tenantID uuid.UUID, p types.Platform) (PlatformCatalog, int, error) {
	endpoint, ok := c.Endpoints[p]
	if !ok {
		return nil, http.StatusNotFound, fmt.Errorf("no catalog endpoint for %s", p)
	}
	clientID, clientSecret, err := c.Vault.RevealPair(ctx, tenantID, types.Service(p), types.CREDENTIAL_OAUTH_CLIENT)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, http.StatusUnprocessableEntity, ErrCatalogNotConfigured
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	creds := pos.CatalogCredentials{ClientID: clientID, ClientSecret: clientSecret, TokenURL: endpoint.TokenURL}
	if c.NewClient != nil {
		return c.NewClient(ctx, endpoint, creds, c.Timeout), http.StatusOK, nil
	}
	return pos.NewCatalogClient(ctx, endpoint.BaseURL, creds, c.Timeout), http.StatusOK, nil
}

func (c *Catalog) fetch(ctx context.Context, tenantID uuid.UUID) ([]pos.Item, error) {
	token, err := c.Vault.Reveal(ctx, tenantID, types.SERVICE_LOYVERSE, types.CREDENTIAL_ACCESS_TOKEN)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, common.ErrMissingPOSAuth
	}
	if err != nil {
		return nil, err
	}
	return c.POS.FetchItems(ctx, token)
}

func catalogStatus(err error) int {
	var apiErr *pos.APIError
	switch {
	case errors.Is(err, ErrCatalogNotConfigured), errors.Is(err, common.ErrMissingPOSAuth):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// menuFromItems publishes one menu entry per POS variant.
func menuFromItems(items []pos.Item) []pos.MenuItem {
	var menu []pos.MenuItem
	for _, it := range items {
		for _, v := range it.Variants {
			name := it.ItemName
			if len(it.Variants) > 1 && v.SKU != "" {
				name = it.ItemName + " (" + v.SKU + ")"
			}
			menu = append(menu, pos.MenuItem{
				ID:        v.VariantID,
				Name:      name,
				Price:     v.DefaultPrice,
				Available: true,
			})
		}
	}
	return menu
}
