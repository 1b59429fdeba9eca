package pos

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type MenuItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// CatalogClient talks to a delivery platform's catalog API with a
// client-credentials token minted per tenant.
type CatalogClient struct {
	BaseURL string
	HTTP    *http.Client
}

type CatalogCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// NewCatalogClient builds an OAuth2 client. Tokens are cached and refreshed
// by the oauth2 transport; every request is bounded by timeout.
func NewCatalogClient(ctx context.Context, baseURL string, creds CatalogCredentials, timeout time.Duration) *CatalogClient {
	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	base := newHTTPClient(timeout)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = base.Timeout
	return &CatalogClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
	}
}

func (c *CatalogClient) PushMenu(ctx context.Context, items []MenuItem) error {
	_, err := doJSON(ctx, c.HTTP, http.MethodPut, c.BaseURL+"/v1/menu", nil, map[string]any{"items": items}, nil)
	return err
}

func (c *CatalogClient) FetchItems(ctx context.Context) ([]MenuItem, error) {
	var out struct {
		Items []MenuItem `json:"items"`
	}
	if _, err := doJSON(ctx, c.HTTP, http.MethodGet, c.BaseURL+"/v1/menu/items", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *CatalogClient) PushOrderStatus(ctx context.Context, externalID, status string) error {
	_, err := doJSON(ctx, c.HTTP, http.MethodPost, c.BaseURL+"/v1/orders/"+url.PathEscape(externalID)+"/status", nil, map[string]string{"status": status}, nil)
	return err
}
