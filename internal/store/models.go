package store

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Order types. product_meta is only populated for OrderTypeProduct;
// meter_id is always null for OrderTypeMeter.
const (
	OrderTypeMeter       = "meter_order"
	OrderTypeElectricity = "meter_electricity_order"
	OrderTypeProduct     = "product_order"
)

// City is a reference entity resolved by normalized name.
type City struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	MiniGridID pgtype.Int8 `json:"mini_grid_id"`
	ClusterID  pgtype.Int8 `json:"cluster_id"`
	CountryID  int64       `json:"country_id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type CreateCityParams struct {
	Name       string
	MiniGridID pgtype.Int8
	ClusterID  pgtype.Int8
	CountryID  int64
}

// MeterType is a reference entity identified by (max_current, phase, online).
type MeterType struct {
	ID         int64     `json:"id"`
	MaxCurrent float64   `json:"max_current"`
	Phase      int32     `json:"phase"`
	Online     bool      `json:"online"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type GetMeterTypeParams struct {
	MaxCurrent float64
	Phase      int32
}

type CreateMeterTypeParams struct {
	MaxCurrent float64
	Phase      int32
	Online     bool
}

// Person is a customer identified by phone number.
type Person struct {
	ID                 int64       `json:"id"`
	Title              pgtype.Text `json:"title"`
	Name               string      `json:"name"`
	Surname            string      `json:"surname"`
	Phone              string      `json:"phone"`
	NationalIDNumber   pgtype.Text `json:"national_id_number"`
	ExternalCustomerID pgtype.Text `json:"external_customer_id"`
	MiniGridID         pgtype.Int8 `json:"mini_grid_id"`
	CityID             pgtype.Int8 `json:"city_id"`
	IsCustomer         bool        `json:"is_customer"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type CreatePersonParams struct {
	Title              pgtype.Text
	Name               string
	Surname            string
	Phone              string
	NationalIDNumber   pgtype.Text
	ExternalCustomerID pgtype.Text
	MiniGridID         pgtype.Int8
	CityID             pgtype.Int8
	IsCustomer         bool
}

// Meter is a physical device identified by its serial number.
type Meter struct {
	ID                int64     `json:"id"`
	SerialNumber      string    `json:"serial_number"`
	MeterTypeID       int64     `json:"meter_type_id"`
	ManufacturerID    int64     `json:"manufacturer_id"`
	ConnectionTypeID  int64     `json:"connection_type_id"`
	ConnectionGroupID int64     `json:"connection_group_id"`
	TariffID          int64     `json:"tariff_id"`
	InUse             bool      `json:"in_use"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type CreateMeterParams struct {
	SerialNumber      string
	MeterTypeID       int64
	ManufacturerID    int64
	ConnectionTypeID  int64
	ConnectionGroupID int64
	TariffID          int64
	InUse             bool
}

// Device links a person to an assigned piece of hardware by serial.
type Device struct {
	ID           int64     `json:"id"`
	PersonID     int64     `json:"person_id"`
	DeviceSerial string    `json:"device_serial"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateDeviceParams struct {
	PersonID     int64
	DeviceSerial string
}

// Order is a vend/transaction record.
type Order struct {
	ID                 int64              `json:"id"`
	OrderID            string             `json:"order_id"`
	Type               string             `json:"type"`
	CustomerID         pgtype.Int8        `json:"customer_id"`
	MeterID            pgtype.Int8        `json:"meter_id"`
	Amount             float64            `json:"amount"`
	PowerCode          pgtype.Text        `json:"power_code"`
	Token              pgtype.Text        `json:"token"`
	PurchasedAt        pgtype.Timestamptz `json:"purchased_at"`
	FirstName          pgtype.Text        `json:"first_name"`
	LastName           pgtype.Text        `json:"last_name"`
	Email              pgtype.Text        `json:"email"`
	PhoneNumber        pgtype.Text        `json:"phone_number"`
	NationalIDNumber   pgtype.Text        `json:"national_id_number"`
	CityName           pgtype.Text        `json:"city_name"`
	StateName          pgtype.Text        `json:"state_name"`
	MiniGridID         pgtype.Int8        `json:"mini_grid_id"`
	ExternalCustomerID pgtype.Text        `json:"external_customer_id"`
	ProductMeta        json.RawMessage    `json:"product_meta,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type CreateOrderParams struct {
	OrderID            string
	Type               string
	CustomerID         pgtype.Int8
	MeterID            pgtype.Int8
	Amount             float64
	PowerCode          pgtype.Text
	Token              pgtype.Text
	PurchasedAt        pgtype.Timestamptz
	FirstName          pgtype.Text
	LastName           pgtype.Text
	Email              pgtype.Text
	PhoneNumber        pgtype.Text
	NationalIDNumber   pgtype.Text
	CityName           pgtype.Text
	StateName          pgtype.Text
	MiniGridID         pgtype.Int8
	ExternalCustomerID pgtype.Text
	ProductMeta        json.RawMessage
}

// UpdateOrderParams rewrites every mutable order column; the business
// identifier and timestamps are managed by the store.
type UpdateOrderParams struct {
	ID                 int64
	Type               string
	CustomerID         pgtype.Int8
	MeterID            pgtype.Int8
	Amount             float64
	PowerCode          pgtype.Text
	Token              pgtype.Text
	PurchasedAt        pgtype.Timestamptz
	FirstName          pgtype.Text
	LastName           pgtype.Text
	Email              pgtype.Text
	PhoneNumber        pgtype.Text
	NationalIDNumber   pgtype.Text
	CityName           pgtype.Text
	StateName          pgtype.Text
	MiniGridID         pgtype.Int8
	ExternalCustomerID pgtype.Text
	ProductMeta        json.RawMessage
}

type OrderAnalyticsParams struct {
	From pgtype.Timestamptz // optional window, both bounds or none
	To   pgtype.Timestamptz
}

// OrderTypeStat is one analytics bucket: how many orders of a type exist in
// the window and what they total.
type OrderTypeStat struct {
	Type   string  `json:"type"`
	Orders int64   `json:"orders"`
	Amount float64 `json:"amount"`
}

type ListOrdersParams struct {
	Type   string // optional, empty matches all
	Search string // optional, matches order_id / name / token
	Limit  int32
	Offset int32
}

type AssignMeterToOrderParams struct {
	ID                 int64
	MeterID            int64
	ExternalCustomerID pgtype.Text
}

type ListPendingMeterOrdersParams struct {
	From pgtype.Timestamptz // optional window, both bounds or none
	To   pgtype.Timestamptz
}

// PendingVendingRow is a meter_order awaiting a meter, joined with what the
// vending export sheet needs.
type PendingVendingRow struct {
	OrderID      int64              `json:"order_id"`
	FirstName    pgtype.Text        `json:"first_name"`
	LastName     pgtype.Text        `json:"last_name"`
	SerialNumber pgtype.Text        `json:"serial_number"`
	Amount       float64            `json:"amount"`
	MaxCurrent   pgtype.Float8      `json:"max_current"`
	Token        pgtype.Text        `json:"token"`
	PurchasedAt  pgtype.Timestamptz `json:"purchased_at"`
}

// OrderAddress is an optional billing or shipping sub-record of an order.
type OrderAddress struct {
	ID          int64       `json:"id"`
	OrderID     int64       `json:"order_id"`
	Type        string      `json:"type"`
	FirstName   pgtype.Text `json:"first_name"`
	LastName    pgtype.Text `json:"last_name"`
	Address1    pgtype.Text `json:"address1"`
	Address2    pgtype.Text `json:"address2"`
	City        pgtype.Text `json:"city"`
	State       pgtype.Text `json:"state"`
	PhoneNumber pgtype.Text `json:"phone_number"`
}

type CreateOrderAddressParams struct {
	OrderID     int64
	Type        string
	FirstName   pgtype.Text
	LastName    pgtype.Text
	Address1    pgtype.Text
	Address2    pgtype.Text
	City        pgtype.Text
	State       pgtype.Text
	PhoneNumber pgtype.Text
}
