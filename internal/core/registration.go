package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

// RegistrationInput is the full customer-and-meter payload the registration
// flow takes, unlike import rows which carry only a subset.
type RegistrationInput struct {
	Title              string
	Name               string
	Surname            string
	Phone              string
	NationalID         string
	ExternalCustomerID string
	GeoPoints          string
	CityID             int64
	MiniGridID         int64

	SerialNumber      string
	MeterTypeID       int64
	ManufacturerID    int64
	ConnectionTypeID  int64
	ConnectionGroupID int64
	TariffID          int64
}

// RegisterCustomer creates (or reuses) a person, registers their meter, links
// the device, and attaches the meter to the customer's earliest pending
// meter order if one exists. Unlike the import path, an already-registered
// serial number is an error here.
func RegisterCustomer(ctx context.Context, q store.Querier, in RegistrationInput) (store.Person, store.Meter, error) {
	phone := digitsOnly(in.Phone)

	person, err := q.GetPersonByPhone(ctx, phone)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := validate.Check("person.create", map[string]string{
			"name":         in.Name,
			"surname":      in.Surname,
			"phone":        phone,
			"tariff_id":    strconv.FormatInt(in.TariffID, 10),
			"geo_points":   in.GeoPoints,
			"manufacturer": strconv.FormatInt(in.ManufacturerID, 10),
			"meter_type":   strconv.FormatInt(in.MeterTypeID, 10),
		}); err != nil {
			return store.Person{}, store.Meter{}, err
		}
		person, err = q.CreatePerson(ctx, store.CreatePersonParams{
			Title:              store.ToPgText(in.Title),
			Name:               in.Name,
			Surname:            in.Surname,
			Phone:              phone,
			NationalIDNumber:   store.ToPgText(in.NationalID),
			ExternalCustomerID: store.ToPgText(in.ExternalCustomerID),
			MiniGridID:         store.ToPgInt8(in.MiniGridID),
			CityID:             store.ToPgInt8(in.CityID),
			IsCustomer:         true,
		})
	}
	if err != nil {
		return store.Person{}, store.Meter{}, fmt.Errorf("resolve customer: %w", err)
	}

	if _, err := q.GetMeterBySerial(ctx, in.SerialNumber); err == nil {
		return store.Person{}, store.Meter{}, fmt.Errorf("meter %q is already registered", in.SerialNumber)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return store.Person{}, store.Meter{}, fmt.Errorf("look up meter %q: %w", in.SerialNumber, err)
	}

	meter, _, err := ResolveMeter(ctx, q, MeterInput{
		SerialNumber:      in.SerialNumber,
		MeterTypeID:       in.MeterTypeID,
		ManufacturerID:    in.ManufacturerID,
		ConnectionTypeID:  in.ConnectionTypeID,
		ConnectionGroupID: in.ConnectionGroupID,
		TariffID:          in.TariffID,
	})
	if err != nil {
		return store.Person{}, store.Meter{}, err
	}

	if _, err := LinkPersonToMeter(ctx, q, person.ID, meter.SerialNumber); err != nil {
		return store.Person{}, store.Meter{}, err
	}

	if err := attachPendingOrder(ctx, q, person.ID, meter.ID, in.ExternalCustomerID); err != nil {
		return store.Person{}, store.Meter{}, err
	}

	return person, meter, nil
}

// attachPendingOrder fills the customer's oldest meter order that still has
// no meter. Customers buy meters before the hardware arrives; registration
// is when the purchase and the physical meter meet.
func attachPendingOrder(ctx context.Context, q store.Querier, personID, meterID int64, externalID string) error {
	pending, err := q.GetEarliestPendingMeterOrder(ctx, personID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up pending meter order: %w", err)
	}

	_, err = q.AssignMeterToOrder(ctx, store.AssignMeterToOrderParams{
		ID:                 pending.ID,
		MeterID:            meterID,
		ExternalCustomerID: store.ToPgText(externalID),
	})
	if err != nil {
		return fmt.Errorf("attach meter to order %s: %w", pending.OrderID, err)
	}
	return nil
}
