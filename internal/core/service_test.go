package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

func pendingMeterOrder(f *fakeStore, customerID int64, firstName, lastName string) store.Order {
	o, _ := f.CreateOrder(context.Background(), store.CreateOrderParams{
		OrderID:     GenerateOrderID(time.Now()),
		Type:        store.OrderTypeMeter,
		CustomerID:  store.ToPgInt8(customerID),
		Amount:      120000,
		FirstName:   store.ToPgText(firstName),
		LastName:    store.ToPgText(lastName),
		PurchasedAt: store.ToPgTimestamptz(time.Now()),
	})
	return o
}

func TestAssignExternalMeter(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	order := pendingMeterOrder(f, 0, "Jane", "Doe")

	updated, err := svc.AssignExternalMeter(context.Background(), order.ID, AssignMeterInput{
		ExternalCustomerID: "EXT-99",
		SerialNumber:       "47000010",
		MaxCurrent:         10,
		Phase:              1,
		Phone:              "+255713862334",
	})
	require.NoError(t, err)

	require.True(t, updated.MeterID.Valid)
	require.Equal(t, "EXT-99", updated.ExternalCustomerID.String)

	require.Len(t, f.meterTypes, 1)
	require.Equal(t, 10.0, f.meterTypes[0].MaxCurrent)
	require.Len(t, f.meters, 1)
	require.Equal(t, "47000010", f.meters[0].SerialNumber)
	require.Len(t, f.people, 1)
	require.Equal(t, "255713862334", f.people[0].Phone)
	require.Len(t, f.devices, 1)
}

func TestAssignExternalMeterRejectsNonMeterOrder(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	o, err := f.CreateOrder(context.Background(), store.CreateOrderParams{
		OrderID: "MPM-ODR-01-01-2024-000001",
		Type:    store.OrderTypeProduct,
		Amount:  10,
	})
	require.NoError(t, err)

	_, err = svc.AssignExternalMeter(context.Background(), o.ID, AssignMeterInput{
		ExternalCustomerID: "EXT-1",
		SerialNumber:       "47000011",
		MaxCurrent:         10,
		Phase:              1,
		Phone:              "+255713862334",
	})
	require.ErrorContains(t, err, "not a meter order")
}

func TestAssignExternalMeterRejectsAssignedOrder(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	order := pendingMeterOrder(f, 0, "Jane", "Doe")
	_, err := f.AssignMeterToOrder(context.Background(), store.AssignMeterToOrderParams{
		ID: order.ID, MeterID: 42,
	})
	require.NoError(t, err)

	_, err = svc.AssignExternalMeter(context.Background(), order.ID, AssignMeterInput{
		ExternalCustomerID: "EXT-1",
		SerialNumber:       "47000012",
		MaxCurrent:         10,
		Phase:              1,
		Phone:              "+255713862334",
	})
	require.ErrorContains(t, err, "already has a meter")
}

func TestAssignExternalMeterValidatesInput(t *testing.T) {
	svc := newTestService(newFakeStore(), Limits{})
	_, err := svc.AssignExternalMeter(context.Background(), 1, AssignMeterInput{
		SerialNumber: "47000013",
		Phase:        2, // only 1 and 3 exist
	})
	require.Error(t, err)
}

func TestRegisterCustomerAttachesPendingOrder(t *testing.T) {
	f := newFakeStore()
	person, err := f.CreatePerson(context.Background(), store.CreatePersonParams{
		Name: "Jane", Surname: "Doe", Phone: "255713862334", IsCustomer: true,
	})
	require.NoError(t, err)
	pending := pendingMeterOrder(f, person.ID, "Jane", "Doe")

	got, meter, err := RegisterCustomer(context.Background(), f, RegistrationInput{
		Name:              "Jane",
		Surname:           "Doe",
		Phone:             "+255 713 862 334",
		GeoPoints:         "-6.8,39.2",
		SerialNumber:      "47000020",
		MeterTypeID:       1,
		ManufacturerID:    defaultManufacturerID,
		ConnectionTypeID:  defaultConnectionTypeID,
		ConnectionGroupID: defaultConnectionGroupID,
		TariffID:          defaultTariffID,
	})
	require.NoError(t, err)
	require.Equal(t, person.ID, got.ID, "existing person is reused by phone")

	attached, err := f.GetOrder(context.Background(), pending.ID)
	require.NoError(t, err)
	require.True(t, attached.MeterID.Valid)
	require.Equal(t, meter.ID, attached.MeterID.Int64)
}

func TestRegisterCustomerRejectsKnownSerial(t *testing.T) {
	f := newFakeStore()
	_, err := f.CreateMeter(context.Background(), store.CreateMeterParams{
		SerialNumber: "47000030", MeterTypeID: 1, ManufacturerID: 1,
		ConnectionTypeID: 1, ConnectionGroupID: 1, TariffID: 1, InUse: true,
	})
	require.NoError(t, err)

	_, _, err = RegisterCustomer(context.Background(), f, RegistrationInput{
		Name: "Jane", Surname: "Doe", Phone: "255713862334",
		GeoPoints: "-6.8,39.2", SerialNumber: "47000030",
		MeterTypeID: 1, ManufacturerID: 1, ConnectionTypeID: 1,
		ConnectionGroupID: 1, TariffID: 1,
	})
	require.ErrorContains(t, err, "already registered")
}

func TestCreateOrderElectricityRequiresVendFields(t *testing.T) {
	svc := newTestService(newFakeStore(), Limits{})
	_, err := svc.CreateOrder(context.Background(), OrderInput{
		Type:   store.OrderTypeElectricity,
		Amount: 10,
	})

	var fieldErrs validate.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Contains(t, fieldErrs, "token")
	require.Contains(t, fieldErrs, "power_code")
	require.Contains(t, fieldErrs, "purchased_at")
}

func TestCreateOrderDuplicateTokenLeavesStoreIntact(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})

	vend := OrderInput{
		Type:        store.OrderTypeElectricity,
		Amount:      10,
		Token:       "TOK-1",
		PowerCode:   "5.2 kWh",
		PurchasedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	_, err := svc.CreateOrder(context.Background(), vend)
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), vend)
	require.Error(t, err)
	require.Len(t, f.orders, 1)
}

func TestCreateOrderResolvesMeterBySerial(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	meter, err := f.CreateMeter(context.Background(), store.CreateMeterParams{
		SerialNumber: "47000040", MeterTypeID: 1, ManufacturerID: 1,
		ConnectionTypeID: 1, ConnectionGroupID: 1, TariffID: 1, InUse: true,
	})
	require.NoError(t, err)

	order, err := svc.CreateOrder(context.Background(), OrderInput{
		Type:         store.OrderTypeElectricity,
		Amount:       10,
		Token:        "TOK-2",
		PowerCode:    "5.2 kWh",
		PurchasedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SerialNumber: "47000040",
	})
	require.NoError(t, err)
	require.True(t, order.MeterID.Valid)
	require.Equal(t, meter.ID, order.MeterID.Int64)
}

func TestCreateOrderUnknownSerial(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})

	_, err := svc.CreateOrder(context.Background(), OrderInput{
		Type:         store.OrderTypeElectricity,
		Amount:       10,
		Token:        "TOK-3",
		PowerCode:    "5.2 kWh",
		PurchasedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SerialNumber: "00000000",
	})
	require.ErrorContains(t, err, `meter "00000000" not found`)
	require.Empty(t, f.orders, "nothing is written when the meter lookup fails")
}

func TestUpdateOrderService(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	created, err := svc.CreateOrder(context.Background(), OrderInput{
		Type:        store.OrderTypeElectricity,
		Amount:      10,
		Token:       "TOK-4",
		PowerCode:   "5.2 kWh",
		PurchasedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// Omitted type and purchase time keep their values; the same token is
	// allowed back on the order it belongs to.
	updated, err := svc.UpdateOrder(context.Background(), created.ID, OrderInput{
		Amount:    25,
		Token:     "TOK-4",
		PowerCode: "9.9 kWh",
	})
	require.NoError(t, err)
	require.Equal(t, created.OrderID, updated.OrderID, "business identifier never changes")
	require.Equal(t, store.OrderTypeElectricity, updated.Type)
	require.Equal(t, 25.0, updated.Amount)
	require.Equal(t, "9.9 kWh", updated.PowerCode.String)
	require.Equal(t, created.PurchasedAt.Time, updated.PurchasedAt.Time)
}

func TestUpdateOrderRejectsForeignToken(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	first, err := svc.CreateOrder(context.Background(), OrderInput{
		Type: store.OrderTypeElectricity, Amount: 10, Token: "TOK-5",
		PowerCode: "5 kWh", PurchasedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), OrderInput{
		Type: store.OrderTypeElectricity, Amount: 10, Token: "TOK-6",
		PowerCode: "5 kWh", PurchasedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.UpdateOrder(context.Background(), first.ID, OrderInput{
		Amount: 10, Token: "TOK-6", PowerCode: "5 kWh",
	})
	require.ErrorContains(t, err, `token "TOK-6" already exists`)
}

func TestUpdateOrderNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), Limits{})
	_, err := svc.UpdateOrder(context.Background(), 999, OrderInput{
		Type: store.OrderTypeMeter, Amount: 10,
	})
	require.ErrorContains(t, err, "order 999 not found")
}

func TestUpdateOrderStripsFieldsOnTypeChange(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	created, err := svc.CreateOrder(context.Background(), OrderInput{
		Type: store.OrderTypeElectricity, Amount: 10, Token: "TOK-7",
		PowerCode: "5 kWh", PurchasedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateOrder(context.Background(), created.ID, OrderInput{
		Type: store.OrderTypeMeter, Amount: 10,
		Token: "TOK-8", PowerCode: "9 kWh", // not valid on a meter order
	})
	require.NoError(t, err)
	require.False(t, updated.Token.Valid)
	require.False(t, updated.PowerCode.Valid)
	require.False(t, updated.MeterID.Valid)
}

func TestOrderAnalytics(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	for i, o := range []struct {
		typ         string
		amount      float64
		purchasedAt time.Time
	}{
		{store.OrderTypeMeter, 120000, jan},
		{store.OrderTypeElectricity, 5000, jan},
		{store.OrderTypeElectricity, 7000, mar},
	} {
		_, err := f.CreateOrder(context.Background(), store.CreateOrderParams{
			OrderID:     fmt.Sprintf("MPM-ODR-01-01-2024-%06d", i),
			Type:        o.typ,
			Amount:      o.amount,
			PurchasedAt: store.ToPgTimestamptz(o.purchasedAt),
		})
		require.NoError(t, err)
	}

	all, err := svc.OrderAnalytics(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, []store.OrderTypeStat{
		{Type: store.OrderTypeElectricity, Orders: 2, Amount: 12000},
		{Type: store.OrderTypeMeter, Orders: 1, Amount: 120000},
	}, all)

	janOnly, err := svc.OrderAnalytics(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, []store.OrderTypeStat{
		{Type: store.OrderTypeElectricity, Orders: 1, Amount: 5000},
		{Type: store.OrderTypeMeter, Orders: 1, Amount: 120000},
	}, janOnly)
}

func TestPendingVendingRows(t *testing.T) {
	f := newFakeStore()
	svc := newTestService(f, Limits{})

	old := pendingMeterOrder(f, 0, "Old", "Order")
	f.orders[0].PurchasedAt = pgtype.Timestamptz{
		Time: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true,
	}
	_ = old

	pendingMeterOrder(f, 0, "New", "Order")

	all, err := svc.PendingVendingRows(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	windowed, err := svc.PendingVendingRows(context.Background(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, "New", windowed[0].FirstName.String)
}
