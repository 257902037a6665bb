package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"gridvend/internal/store"
)

// fakeStore is an in-memory store.Runner. RunInTx snapshots the whole state
// and restores it when fn fails, mirroring the per-row rollback the real
// pool provides. fail injects an error keyed by method name.
type fakeStore struct {
	nextID     int64
	cities     []store.City
	meterTypes []store.MeterType
	people     []store.Person
	meters     []store.Meter
	devices    []store.Device
	orders     []store.Order
	addresses  []store.OrderAddress
	fail       map[string]error
}

var _ store.Runner = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{fail: make(map[string]error)}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) failing(method string) error {
	return f.fail[method]
}

func (f *fakeStore) snapshot() fakeStore {
	cp := *f
	cp.cities = append([]store.City(nil), f.cities...)
	cp.meterTypes = append([]store.MeterType(nil), f.meterTypes...)
	cp.people = append([]store.Person(nil), f.people...)
	cp.meters = append([]store.Meter(nil), f.meters...)
	cp.devices = append([]store.Device(nil), f.devices...)
	cp.orders = append([]store.Order(nil), f.orders...)
	cp.addresses = append([]store.OrderAddress(nil), f.addresses...)
	return cp
}

func (f *fakeStore) RunInTx(_ context.Context, fn func(q store.Querier) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		*f = snap
		return err
	}
	return nil
}

func (f *fakeStore) GetCityByName(_ context.Context, name string) (store.City, error) {
	for _, c := range f.cities {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return store.City{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateCity(_ context.Context, arg store.CreateCityParams) (store.City, error) {
	if err := f.failing("CreateCity"); err != nil {
		return store.City{}, err
	}
	c := store.City{
		ID:         f.id(),
		Name:       strings.TrimSpace(arg.Name),
		MiniGridID: arg.MiniGridID,
		ClusterID:  arg.ClusterID,
		CountryID:  arg.CountryID,
		CreatedAt:  time.Now(),
	}
	f.cities = append(f.cities, c)
	return c, nil
}

func (f *fakeStore) GetMeterType(_ context.Context, arg store.GetMeterTypeParams) (store.MeterType, error) {
	for _, mt := range f.meterTypes {
		if mt.MaxCurrent == arg.MaxCurrent && mt.Phase == arg.Phase && mt.Online {
			return mt, nil
		}
	}
	return store.MeterType{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateMeterType(_ context.Context, arg store.CreateMeterTypeParams) (store.MeterType, error) {
	mt := store.MeterType{
		ID:         f.id(),
		MaxCurrent: arg.MaxCurrent,
		Phase:      arg.Phase,
		Online:     arg.Online,
		CreatedAt:  time.Now(),
	}
	f.meterTypes = append(f.meterTypes, mt)
	return mt, nil
}

func (f *fakeStore) GetPersonByPhone(_ context.Context, phone string) (store.Person, error) {
	for _, p := range f.people {
		if p.Phone == phone {
			return p, nil
		}
	}
	return store.Person{}, pgx.ErrNoRows
}

func (f *fakeStore) CreatePerson(_ context.Context, arg store.CreatePersonParams) (store.Person, error) {
	if err := f.failing("CreatePerson"); err != nil {
		return store.Person{}, err
	}
	p := store.Person{
		ID:                 f.id(),
		Title:              arg.Title,
		Name:               arg.Name,
		Surname:            arg.Surname,
		Phone:              arg.Phone,
		NationalIDNumber:   arg.NationalIDNumber,
		ExternalCustomerID: arg.ExternalCustomerID,
		MiniGridID:         arg.MiniGridID,
		CityID:             arg.CityID,
		IsCustomer:         arg.IsCustomer,
		CreatedAt:          time.Now(),
	}
	f.people = append(f.people, p)
	return p, nil
}

func (f *fakeStore) GetMeterBySerial(_ context.Context, serial string) (store.Meter, error) {
	for _, m := range f.meters {
		if m.SerialNumber == serial {
			return m, nil
		}
	}
	return store.Meter{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateMeter(_ context.Context, arg store.CreateMeterParams) (store.Meter, error) {
	if err := f.failing("CreateMeter"); err != nil {
		return store.Meter{}, err
	}
	m := store.Meter{
		ID:                f.id(),
		SerialNumber:      arg.SerialNumber,
		MeterTypeID:       arg.MeterTypeID,
		ManufacturerID:    arg.ManufacturerID,
		ConnectionTypeID:  arg.ConnectionTypeID,
		ConnectionGroupID: arg.ConnectionGroupID,
		TariffID:          arg.TariffID,
		InUse:             arg.InUse,
		CreatedAt:         time.Now(),
	}
	f.meters = append(f.meters, m)
	return m, nil
}

func (f *fakeStore) CreateDevice(_ context.Context, arg store.CreateDeviceParams) (store.Device, error) {
	d := store.Device{
		ID:           f.id(),
		PersonID:     arg.PersonID,
		DeviceSerial: arg.DeviceSerial,
		CreatedAt:    time.Now(),
	}
	f.devices = append(f.devices, d)
	return d, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (store.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) GetOrderByOrderID(_ context.Context, orderID string) (store.Order, error) {
	for _, o := range f.orders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) GetOrderByToken(_ context.Context, token string) (store.Order, error) {
	for _, o := range f.orders {
		if o.Token.Valid && o.Token.String == token {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateOrder(_ context.Context, arg store.CreateOrderParams) (store.Order, error) {
	if err := f.failing("CreateOrder"); err != nil {
		return store.Order{}, err
	}
	o := store.Order{
		ID:                 f.id(),
		OrderID:            arg.OrderID,
		Type:               arg.Type,
		CustomerID:         arg.CustomerID,
		MeterID:            arg.MeterID,
		Amount:             arg.Amount,
		PowerCode:          arg.PowerCode,
		Token:              arg.Token,
		PurchasedAt:        arg.PurchasedAt,
		FirstName:          arg.FirstName,
		LastName:           arg.LastName,
		Email:              arg.Email,
		PhoneNumber:        arg.PhoneNumber,
		NationalIDNumber:   arg.NationalIDNumber,
		CityName:           arg.CityName,
		StateName:          arg.StateName,
		MiniGridID:         arg.MiniGridID,
		ExternalCustomerID: arg.ExternalCustomerID,
		ProductMeta:        arg.ProductMeta,
		CreatedAt:          time.Now(),
	}
	f.orders = append(f.orders, o)
	return o, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, arg store.UpdateOrderParams) (store.Order, error) {
	if err := f.failing("UpdateOrder"); err != nil {
		return store.Order{}, err
	}
	for i, o := range f.orders {
		if o.ID != arg.ID {
			continue
		}
		o.Type = arg.Type
		o.CustomerID = arg.CustomerID
		o.MeterID = arg.MeterID
		o.Amount = arg.Amount
		o.PowerCode = arg.PowerCode
		o.Token = arg.Token
		o.PurchasedAt = arg.PurchasedAt
		o.FirstName = arg.FirstName
		o.LastName = arg.LastName
		o.Email = arg.Email
		o.PhoneNumber = arg.PhoneNumber
		o.NationalIDNumber = arg.NationalIDNumber
		o.CityName = arg.CityName
		o.StateName = arg.StateName
		o.MiniGridID = arg.MiniGridID
		o.ExternalCustomerID = arg.ExternalCustomerID
		o.ProductMeta = arg.ProductMeta
		o.UpdatedAt = time.Now()
		f.orders[i] = o
		return o, nil
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) OrderAnalytics(_ context.Context, arg store.OrderAnalyticsParams) ([]store.OrderTypeStat, error) {
	byType := make(map[string]*store.OrderTypeStat)
	for _, o := range f.orders {
		if arg.From.Valid && o.PurchasedAt.Time.Before(arg.From.Time) {
			continue
		}
		if arg.To.Valid && o.PurchasedAt.Time.After(arg.To.Time) {
			continue
		}
		s, ok := byType[o.Type]
		if !ok {
			s = &store.OrderTypeStat{Type: o.Type}
			byType[o.Type] = s
		}
		s.Orders++
		s.Amount += o.Amount
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	out := make([]store.OrderTypeStat, 0, len(types))
	for _, t := range types {
		out = append(out, *byType[t])
	}
	return out, nil
}

func (f *fakeStore) ListOrders(_ context.Context, arg store.ListOrdersParams) ([]store.Order, error) {
	var out []store.Order
	for _, o := range f.orders {
		if arg.Type != "" && o.Type != arg.Type {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, id int64) error {
	for i, o := range f.orders {
		if o.ID == id {
			f.orders = append(f.orders[:i], f.orders[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("order %d not found", id)
}

func (f *fakeStore) CreateOrderAddress(_ context.Context, arg store.CreateOrderAddressParams) (store.OrderAddress, error) {
	a := store.OrderAddress{
		ID:          f.id(),
		OrderID:     arg.OrderID,
		Type:        arg.Type,
		FirstName:   arg.FirstName,
		LastName:    arg.LastName,
		Address1:    arg.Address1,
		Address2:    arg.Address2,
		City:        arg.City,
		State:       arg.State,
		PhoneNumber: arg.PhoneNumber,
	}
	for i, existing := range f.addresses {
		if existing.OrderID == arg.OrderID && existing.Type == arg.Type {
			a.ID = existing.ID
			f.addresses[i] = a
			return a, nil
		}
	}
	f.addresses = append(f.addresses, a)
	return a, nil
}

func (f *fakeStore) GetEarliestPendingMeterOrder(_ context.Context, customerID int64) (store.Order, error) {
	for _, o := range f.orders {
		if o.CustomerID.Valid && o.CustomerID.Int64 == customerID &&
			o.Type == store.OrderTypeMeter && !o.MeterID.Valid {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) AssignMeterToOrder(_ context.Context, arg store.AssignMeterToOrderParams) (store.Order, error) {
	for i, o := range f.orders {
		if o.ID == arg.ID {
			o.MeterID = pgtype.Int8{Int64: arg.MeterID, Valid: true}
			if arg.ExternalCustomerID.Valid {
				o.ExternalCustomerID = arg.ExternalCustomerID
			}
			o.UpdatedAt = time.Now()
			f.orders[i] = o
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) ListPendingMeterOrders(_ context.Context, arg store.ListPendingMeterOrdersParams) ([]store.PendingVendingRow, error) {
	var out []store.PendingVendingRow
	for _, o := range f.orders {
		if o.Type != store.OrderTypeMeter || o.MeterID.Valid {
			continue
		}
		if arg.From.Valid && o.PurchasedAt.Time.Before(arg.From.Time) {
			continue
		}
		if arg.To.Valid && o.PurchasedAt.Time.After(arg.To.Time) {
			continue
		}
		out = append(out, store.PendingVendingRow{
			OrderID:     o.ID,
			FirstName:   o.FirstName,
			LastName:    o.LastName,
			Amount:      o.Amount,
			Token:       o.Token,
			PurchasedAt: o.PurchasedAt,
		})
	}
	return out, nil
}
