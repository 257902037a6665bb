package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

// PersonInput is the attribute set a row contributes toward a person.
type PersonInput struct {
	Title      string
	Name       string
	Surname    string
	Phone      string // free text, normalized to digits before lookup
	NationalID string
	ExternalID string
	CityID     int64
	MiniGridID int64
}

// ResolvePerson finds a person by normalized phone number or creates one.
// A row without a usable phone gets a random ten-digit filler so the person
// is still created and later rows cannot collide with it. The boolean
// reports whether the person already existed.
func ResolvePerson(ctx context.Context, q store.Querier, in PersonInput) (store.Person, bool, error) {
	phone := digitsOnly(in.Phone)
	if phone == "" {
		phone = randomPhone()
	}

	p, err := q.GetPersonByPhone(ctx, phone)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.Person{}, false, fmt.Errorf("look up person by phone: %w", err)
	}

	name, surname := splitName(in.Name, in.Surname)
	if err := validate.Check("person.import", map[string]string{
		"name":    name,
		"surname": surname,
		"phone":   phone,
	}); err != nil {
		return store.Person{}, false, err
	}

	p, err = q.CreatePerson(ctx, store.CreatePersonParams{
		Title:              store.ToPgText(in.Title),
		Name:               name,
		Surname:            surname,
		Phone:              phone,
		NationalIDNumber:   store.ToPgText(in.NationalID),
		ExternalCustomerID: store.ToPgText(in.ExternalID),
		MiniGridID:         store.ToPgInt8(in.MiniGridID),
		CityID:             store.ToPgInt8(in.CityID),
		IsCustomer:         true,
	})
	if err != nil {
		return store.Person{}, false, fmt.Errorf("create person %q: %w", name, err)
	}
	return p, false, nil
}

// MeterInput is the attribute set a row contributes toward a meter.
type MeterInput struct {
	SerialNumber      string
	MeterTypeID       int64
	ManufacturerID    int64
	ConnectionTypeID  int64
	ConnectionGroupID int64
	TariffID          int64
}

// ResolveMeter finds a meter by serial number or creates one marked in use.
// The boolean reports whether the meter already existed.
func ResolveMeter(ctx context.Context, q store.Querier, in MeterInput) (store.Meter, bool, error) {
	serial := strings.TrimSpace(in.SerialNumber)

	m, err := q.GetMeterBySerial(ctx, serial)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.Meter{}, false, fmt.Errorf("look up meter %q: %w", serial, err)
	}

	if err := validate.Check("meter.create", map[string]string{
		"serial_number":       serial,
		"meter_type_id":       strconv.FormatInt(in.MeterTypeID, 10),
		"manufacturer_id":     strconv.FormatInt(in.ManufacturerID, 10),
		"connection_type_id":  strconv.FormatInt(in.ConnectionTypeID, 10),
		"connection_group_id": strconv.FormatInt(in.ConnectionGroupID, 10),
		"tariff_id":           strconv.FormatInt(in.TariffID, 10),
	}); err != nil {
		return store.Meter{}, false, err
	}

	m, err = q.CreateMeter(ctx, store.CreateMeterParams{
		SerialNumber:      serial,
		MeterTypeID:       in.MeterTypeID,
		ManufacturerID:    in.ManufacturerID,
		ConnectionTypeID:  in.ConnectionTypeID,
		ConnectionGroupID: in.ConnectionGroupID,
		TariffID:          in.TariffID,
		InUse:             true,
	})
	if err != nil {
		return store.Meter{}, false, fmt.Errorf("create meter %q: %w", serial, err)
	}
	return m, false, nil
}

// assignment is the two-step device link: both ends must be set before
// Assign, and Assign must succeed before Persist writes the row.
type assignment struct {
	personID int64
	serial   string
	linked   bool
}

func (a *assignment) SetAssigned(personID int64) { a.personID = personID }
func (a *assignment) SetAssignee(serial string)  { a.serial = serial }

func (a *assignment) Assign() error {
	if a.personID == 0 {
		return errors.New("device assignment has no owner")
	}
	if a.serial == "" {
		return errors.New("device assignment has no serial")
	}
	a.linked = true
	return nil
}

func (a *assignment) Persist(ctx context.Context, q store.Querier) (store.Device, error) {
	if !a.linked {
		return store.Device{}, errors.New("device assignment not linked")
	}
	return q.CreateDevice(ctx, store.CreateDeviceParams{
		PersonID:     a.personID,
		DeviceSerial: a.serial,
	})
}

// LinkPersonToMeter records device ownership for a freshly created meter.
func LinkPersonToMeter(ctx context.Context, q store.Querier, personID int64, serial string) (store.Device, error) {
	var a assignment
	a.SetAssigned(personID)
	a.SetAssignee(serial)
	if err := a.Assign(); err != nil {
		return store.Device{}, err
	}
	return a.Persist(ctx, q)
}

// splitName derives (name, surname) from the sheet's combined name cell.
// An explicit surname wins; otherwise everything after the first word is the
// surname, and a single-word name doubles as its own surname.
func splitName(name, surname string) (string, string) {
	name = strings.TrimSpace(name)
	surname = strings.TrimSpace(surname)
	if surname != "" {
		return name, surname
	}

	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randomPhone() string {
	return strconv.FormatInt(1_000_000_000+rand.Int64N(9_000_000_000), 10)
}
