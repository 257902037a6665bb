package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

// orderIDAttempts bounds the random-suffix retry loop when a generated
// business identifier collides with an existing order.
const orderIDAttempts = 5

// AddressInput is an optional billing or shipping block on an order.
type AddressInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	State       string `json:"state"`
	PhoneNumber string `json:"phone_number"`
}

// OrderInput is the normalized attribute set the builder turns into an
// order row. Amount arrives already parsed; sheet cells go through
// digitsAndDot before they get here.
type OrderInput struct {
	OrderID            string          `json:"order_id"`
	Type               string          `json:"type"`
	CustomerID         int64           `json:"customer_id"`
	MeterID            int64           `json:"meter_id"`
	SerialNumber       string          `json:"serial_number"` // resolves MeterID when that is absent
	Amount             float64         `json:"amount"`
	PowerCode          string          `json:"power_code"`
	Token              string          `json:"token"`
	PurchasedAt        time.Time       `json:"purchased_at"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	Email              string          `json:"email"`
	PhoneNumber        string          `json:"phone_number"`
	NationalIDNumber   string          `json:"national_id_number"`
	CityName           string          `json:"city_name"`
	StateName          string          `json:"state_name"`
	MiniGridID         int64           `json:"mini_grid_id"`
	ExternalCustomerID string          `json:"external_customer_id"`
	ProductMeta        json.RawMessage `json:"product_meta,omitempty"`
	BillingAddress     *AddressInput   `json:"billing_address,omitempty"`
	ShippingAddress    *AddressInput   `json:"shipping_address,omitempty"`
}

// BuildOrder validates the input, enforces the per-type field invariants,
// secures a unique business identifier and token, and writes the order plus
// any address sub-records.
//
// Invariants by type: meter_order never carries a meter id (assignment comes
// later), only meter_electricity_order carries power code and token, and
// only product_order carries product metadata.
func BuildOrder(ctx context.Context, q store.Querier, in OrderInput) (store.Order, error) {
	if err := validate.Check("order.create", map[string]string{
		"type":   in.Type,
		"amount": strconv.FormatFloat(in.Amount, 'f', -1, 64),
	}); err != nil {
		return store.Order{}, err
	}

	if err := applyTypeInvariants(&in); err != nil {
		return store.Order{}, err
	}

	if in.Token != "" {
		if _, err := q.GetOrderByToken(ctx, in.Token); err == nil {
			return store.Order{}, fmt.Errorf("order with token %q already exists", in.Token)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, fmt.Errorf("check token: %w", err)
		}
	}

	orderID, err := secureOrderID(ctx, q, in.OrderID)
	if err != nil {
		return store.Order{}, err
	}

	if in.PurchasedAt.IsZero() {
		in.PurchasedAt = time.Now()
	}

	order, err := q.CreateOrder(ctx, store.CreateOrderParams{
		OrderID:            orderID,
		Type:               in.Type,
		CustomerID:         store.ToPgInt8(in.CustomerID),
		MeterID:            store.ToPgInt8(in.MeterID),
		Amount:             in.Amount,
		PowerCode:          store.ToPgText(in.PowerCode),
		Token:              store.ToPgText(in.Token),
		PurchasedAt:        store.ToPgTimestamptz(in.PurchasedAt),
		FirstName:          store.ToPgText(in.FirstName),
		LastName:           store.ToPgText(in.LastName),
		Email:              store.ToPgText(in.Email),
		PhoneNumber:        store.ToPgText(in.PhoneNumber),
		NationalIDNumber:   store.ToPgText(in.NationalIDNumber),
		CityName:           store.ToPgText(in.CityName),
		StateName:          store.ToPgText(in.StateName),
		MiniGridID:         store.ToPgInt8(in.MiniGridID),
		ExternalCustomerID: store.ToPgText(in.ExternalCustomerID),
		ProductMeta:        in.ProductMeta,
	})
	if err != nil {
		return store.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := upsertAddresses(ctx, q, order.ID, in); err != nil {
		return store.Order{}, err
	}
	return order, nil
}

// UpdateOrder rewrites an existing order with the supplied attributes,
// re-enforcing the type invariants, and upserts any address sub-records.
// The business identifier never changes; an omitted type, customer, or
// purchase time keeps its current value.
func UpdateOrder(ctx context.Context, q store.Querier, id int64, in OrderInput) (store.Order, error) {
	current, err := q.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, fmt.Errorf("order %d not found", id)
		}
		return store.Order{}, err
	}

	if in.Type == "" {
		in.Type = current.Type
	}
	if in.CustomerID == 0 {
		in.CustomerID = current.CustomerID.Int64
	}
	if in.PurchasedAt.IsZero() {
		in.PurchasedAt = current.PurchasedAt.Time
	}

	if err := validate.Check("order.create", map[string]string{
		"type":   in.Type,
		"amount": strconv.FormatFloat(in.Amount, 'f', -1, 64),
	}); err != nil {
		return store.Order{}, err
	}
	if err := applyTypeInvariants(&in); err != nil {
		return store.Order{}, err
	}

	// The order may keep its own token; only a token held elsewhere collides.
	if in.Token != "" && (!current.Token.Valid || current.Token.String != in.Token) {
		if _, err := q.GetOrderByToken(ctx, in.Token); err == nil {
			return store.Order{}, fmt.Errorf("order with token %q already exists", in.Token)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, fmt.Errorf("check token: %w", err)
		}
	}

	order, err := q.UpdateOrder(ctx, store.UpdateOrderParams{
		ID:                 id,
		Type:               in.Type,
		CustomerID:         store.ToPgInt8(in.CustomerID),
		MeterID:            store.ToPgInt8(in.MeterID),
		Amount:             in.Amount,
		PowerCode:          store.ToPgText(in.PowerCode),
		Token:              store.ToPgText(in.Token),
		PurchasedAt:        store.ToPgTimestamptz(in.PurchasedAt),
		FirstName:          store.ToPgText(in.FirstName),
		LastName:           store.ToPgText(in.LastName),
		Email:              store.ToPgText(in.Email),
		PhoneNumber:        store.ToPgText(in.PhoneNumber),
		NationalIDNumber:   store.ToPgText(in.NationalIDNumber),
		CityName:           store.ToPgText(in.CityName),
		StateName:          store.ToPgText(in.StateName),
		MiniGridID:         store.ToPgInt8(in.MiniGridID),
		ExternalCustomerID: store.ToPgText(in.ExternalCustomerID),
		ProductMeta:        in.ProductMeta,
	})
	if err != nil {
		return store.Order{}, fmt.Errorf("update order: %w", err)
	}

	if err := upsertAddresses(ctx, q, order.ID, in); err != nil {
		return store.Order{}, err
	}
	return order, nil
}

// applyTypeInvariants forces the type-conditional fields into shape: a meter
// order never carries a meter id, vend fields belong to electricity orders
// only, and product metadata belongs to product orders only.
func applyTypeInvariants(in *OrderInput) error {
	switch in.Type {
	case store.OrderTypeMeter:
		in.MeterID = 0
		in.PowerCode, in.Token = "", ""
		in.ProductMeta = nil
	case store.OrderTypeElectricity:
		in.ProductMeta = nil
	case store.OrderTypeProduct:
		in.MeterID = 0
		in.PowerCode, in.Token = "", ""
		if len(in.ProductMeta) == 0 {
			return errors.New("product_meta: required for product orders")
		}
	}
	return nil
}

func upsertAddresses(ctx context.Context, q store.Querier, orderID int64, in OrderInput) error {
	for kind, addr := range map[string]*AddressInput{
		"billing":  in.BillingAddress,
		"shipping": in.ShippingAddress,
	} {
		if addr == nil {
			continue
		}
		if _, err := q.CreateOrderAddress(ctx, store.CreateOrderAddressParams{
			OrderID:     orderID,
			Type:        kind,
			FirstName:   store.ToPgText(addr.FirstName),
			LastName:    store.ToPgText(addr.LastName),
			Address1:    store.ToPgText(addr.Address1),
			Address2:    store.ToPgText(addr.Address2),
			City:        store.ToPgText(addr.City),
			State:       store.ToPgText(addr.State),
			PhoneNumber: store.ToPgText(addr.PhoneNumber),
		}); err != nil {
			return fmt.Errorf("upsert %s address: %w", kind, err)
		}
	}
	return nil
}

// secureOrderID returns a business identifier that is not yet taken. A
// caller-supplied id must be free; a generated one is re-rolled on collision.
func secureOrderID(ctx context.Context, q store.Querier, supplied string) (string, error) {
	if supplied != "" {
		_, err := q.GetOrderByOrderID(ctx, supplied)
		if err == nil {
			return "", fmt.Errorf("order id %q already exists", supplied)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("check order id: %w", err)
		}
		return supplied, nil
	}

	for range orderIDAttempts {
		id := GenerateOrderID(time.Now())
		_, err := q.GetOrderByOrderID(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check order id: %w", err)
		}
	}
	return "", errors.New("could not generate a unique order id")
}

// GenerateOrderID builds a business identifier of the form
// MPM-ODR-<DD-MM-YYYY>-<6 random digits>.
func GenerateOrderID(t time.Time) string {
	return fmt.Sprintf("MPM-ODR-%s-%06d", t.Format("02-01-2006"), 100000+rand.IntN(900000))
}

// vendDateLayouts are tried in order when parsing free-text purchase dates.
var vendDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"1/2/2006 15:04",
	"1/2/2006",
}

// parseVendDate parses a sheet's purchase-date cell. Unparseable or empty
// cells return the zero time; the builder substitutes the current time.
func parseVendDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range vendDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
