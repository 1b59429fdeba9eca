package webhooks

import (
	"fmt"
	"time"

	"menusync/src/types"

	"github.com/shopspring/decimal"
)

const (
	CareemOrderCreated   = "order.created"
	CareemOrderUpdated   = "order.updated"
	CareemOrderCancelled = "order.cancelled"
)

type careemItem struct {
	ID        flexString      `json:"id"`
	PosID     string          `json:"pos_id"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Options   any             `json:"options"`
}

type careemPayload struct {
	OrderID  flexString `json:"order_id" validate:"required"`
	Event    string     `json:"event" validate:"omitempty,oneof=order.created order.updated order.cancelled"`
	Status   string     `json:"status"`
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Delivery struct {
		Address string          `json:"address"`
		Fee     decimal.Decimal `json:"fee"`
	} `json:"delivery"`
	Items     []careemItem    `json:"items" validate:"dive"`
	Discount  decimal.Decimal `json:"discount"`
	Currency  string          `json:"currency" validate:"omitempty,len=3"`
	Notes     string          `json:"notes"`
	CreatedAt *time.Time      `json:"created_at"`
}

type CareemParser struct{}

func (CareemParser) Parse(body []byte) (*NormalizedEvent, error) {
	var p careemPayload
	if err := decode(body, &p); err != nil {
		return nil, err
	}

	ev := &NormalizedEvent{
		Platform:        types.PLATFORM_CAREEM,
		Event:           p.Event,
		ExternalOrderID: string(p.OrderID),
		PlatformStatus:  p.Status,
	}
	switch p.Event {
	case "", CareemOrderCreated:
		ev.Kind = EventCreate
		ev.Event = CareemOrderCreated
	case CareemOrderCancelled:
		ev.Kind = EventUpdate
		if ev.PlatformStatus == "" {
			ev.PlatformStatus = "cancelled"
		}
		return ev, nil
	default:
		ev.Kind = EventUpdate
		if ev.PlatformStatus == "" {
			return nil, fmt.Errorf("%w: update without status", ErrInvalidPayload)
		}
		return ev, nil
	}

	if len(p.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidPayload)
	}
	if ev.PlatformStatus == "" {
		ev.PlatformStatus = "new"
	}
	order := &NormalizedOrder{
		Currency:        p.Currency,
		DeliveryFee:     p.Delivery.Fee,
		Discount:        p.Discount,
		CustomerName:    p.Customer.Name,
		CustomerPhone:   p.Customer.Phone,
		DeliveryAddress: p.Delivery.Address,
		Notes:           p.Notes,
		PlacedAt:        p.CreatedAt,
	}
	for _, it := range p.Items {
		order.Items = append(order.Items, NormalizedItem{
			ExternalID:   string(it.ID),
			PosVariantID: it.PosID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Options:      rawOptions(it.Options),
		})
	}
	if err := price(order); err != nil {
		return nil, err
	}
	ev.Order = order
	return ev, nil
}
