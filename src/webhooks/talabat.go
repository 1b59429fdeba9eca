package webhooks

import (
	"fmt"
	"strings"
	"time"

	"menusync/src/types"

	"github.com/shopspring/decimal"
)

type talabatProduct struct {
	ID         flexString      `json:"id"`
	RemoteCode string          `json:"remoteCode"`
	Name       string          `json:"name" validate:"required"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Toppings   any             `json:"toppings"`
}

type talabatPayload struct {
	Code     flexString `json:"code" validate:"required"`
	Status   string     `json:"status"`
	Customer struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		MobilePhone string `json:"mobilePhone"`
	} `json:"customer"`
	Delivery struct {
		Address struct {
			Street   string `json:"street"`
			Building string `json:"building"`
			City     string `json:"city"`
		} `json:"address"`
		Fee decimal.Decimal `json:"fee"`
	} `json:"delivery"`
	Products []talabatProduct `json:"products" validate:"dive"`
	Price    struct {
		Discount    decimal.Decimal `json:"discount"`
		DeliveryFee decimal.Decimal `json:"deliveryFee"`
	} `json:"price"`
	Currency  string     `json:"currency" validate:"omitempty,len=3"`
	Comment   string     `json:"comment"`
	CreatedAt *time.Time `json:"createdAt"`
}

// talabatNewStatuses mark a first delivery of an order; any other status is
// a lifecycle change of an order already ingested.
var talabatNewStatuses = map[string]bool{"": true, "new": true, "received": true, "pending": true}

type TalabatParser struct{}

func (TalabatParser) Parse(body []byte) (*NormalizedEvent, error) {
	var p talabatPayload
	if err := decode(body, &p); err != nil {
		return nil, err
	}

	status := strings.ToLower(strings.TrimSpace(p.Status))
	ev := &NormalizedEvent{
		Platform:        types.PLATFORM_TALABAT,
		ExternalOrderID: string(p.Code),
		PlatformStatus:  status,
		Event:           "order.status." + status,
	}
	if !talabatNewStatuses[status] {
		ev.Kind = EventUpdate
		return ev, nil
	}
	ev.Kind = EventCreate
	ev.Event = "order.created"
	if ev.PlatformStatus == "" {
		ev.PlatformStatus = "new"
	}
	if len(p.Products) == 0 {
		return nil, fmt.Errorf("%w: order has no products", ErrInvalidPayload)
	}

	fee := p.Price.DeliveryFee
	if fee.IsZero() {
		fee = p.Delivery.Fee
	}
	addr := []string{}
	for _, part := range []string{p.Delivery.Address.Street, p.Delivery.Address.Building, p.Delivery.Address.City} {
		if part = strings.TrimSpace(part); part != "" {
			addr = append(addr, part)
		}
	}
	order := &NormalizedOrder{
		Currency:        p.Currency,
		DeliveryFee:     fee,
		Discount:        p.Price.Discount,
		CustomerName:    strings.TrimSpace(p.Customer.FirstName + " " + p.Customer.LastName),
		CustomerPhone:   p.Customer.MobilePhone,
		DeliveryAddress: strings.Join(addr, ", "),
		Notes:           p.Comment,
		PlacedAt:        p.CreatedAt,
	}
	for _, it := range p.Products {
		order.Items = append(order.Items, NormalizedItem{
			ExternalID:   string(it.ID),
			PosVariantID: it.RemoteCode,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Options:      rawOptions(it.Toppings),
		})
	}
	if err := price(order); err != nil {
		return nil, err
	}
	ev.Order = order
	return ev, nil
}
