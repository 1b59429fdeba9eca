package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"menusync/src/types"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedPayload is a body that is not the expected JSON shape.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidPayload is well-formed JSON that fails validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
)

type NormalizedItem struct {
	ExternalID   string
	PosVariantID string
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
	Total        decimal.Decimal
	Options      json.RawMessage
}

type NormalizedOrder struct {
	Currency        string
	Items           []NormalizedItem
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Notes           string
	PlacedAt        *time.Time
}

// NormalizedEvent is a platform delivery reduced to what ingestion needs.
// Order is nil for update events.
type NormalizedEvent struct {
	Platform        types.Platform
	Kind            EventKind
	Event           string
	ExternalOrderID string
	PlatformStatus  string
	Order           *NormalizedOrder
}

type Parser interface {
	Parse(body []byte) (*NormalizedEvent, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("not a string or number: %s", string(b))
	}
	*f = flexString(b)
	return nil
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedPayload, err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err.Error())
	}
	return nil
}

// price computes subtotal and total. The total never goes below zero.
func price(o *NormalizedOrder) error {
	subtotal := decimal.Zero
	for i := range o.Items {
		it := &o.Items[i]
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %q has a negative price", ErrInvalidPayload, it.Name)
		}
		it.Total = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(it.Total)
	}
	if o.DeliveryFee.IsNegative() || o.Discount.IsNegative() {
		return fmt.Errorf("%w: negative fee or discount", ErrInvalidPayload)
	}
	o.Subtotal = subtotal
	o.Total = decimal.Max(decimal.Zero, subtotal.Add(o.DeliveryFee).Sub(o.Discount))
	return nil
}

func rawOptions(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" || string(b) == "[]" {
		return nil
	}
	return b
}

// Sniff pulls the external order id and event name out of a body that may
// not parse, for audit rows.
func Sniff(platform types.Platform, body []byte) (externalID, event string) {
	switch platform {
	case types.PLATFORM_CAREEM:
		return gjson.GetBytes(body, "order_id").String(), gjson.GetBytes(body, "event").String()
	case types.PLATFORM_TALABAT:
		return gjson.GetBytes(body, "code").String(), gjson.GetBytes(body, "status").String()
	}
	return "", ""
}
