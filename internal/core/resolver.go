package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

// DefaultCountryID is assigned to cities created during import.
const DefaultCountryID = 160

type meterTypeKey struct {
	maxCurrent float64
	phase      int32
}

// referenceResolver caches city and meter-type lookups for the duration of a
// batch. Entries created inside a row transaction stay pending until the row
// commits; a rolled-back row discards them so later rows re-resolve against
// the database.
type referenceResolver struct {
	miniGridID int64
	clusterID  int64

	cities     map[string]int64
	meterTypes map[meterTypeKey]int64

	pendingCities     map[string]int64
	pendingMeterTypes map[meterTypeKey]int64
}

func newReferenceResolver(miniGridID, clusterID int64) *referenceResolver {
	return &referenceResolver{
		miniGridID:        miniGridID,
		clusterID:         clusterID,
		cities:            make(map[string]int64),
		meterTypes:        make(map[meterTypeKey]int64),
		pendingCities:     make(map[string]int64),
		pendingMeterTypes: make(map[meterTypeKey]int64),
	}
}

// commit moves the current row's pending entries into the batch cache.
func (r *referenceResolver) commit() {
	for k, v := range r.pendingCities {
		r.cities[k] = v
	}
	for k, v := range r.pendingMeterTypes {
		r.meterTypes[k] = v
	}
	r.discard()
}

// discard drops the current row's pending entries.
func (r *referenceResolver) discard() {
	clear(r.pendingCities)
	clear(r.pendingMeterTypes)
}

// City resolves a city by normalized name, creating it when absent. The
// lookup is case-insensitive; created cities inherit the batch mini-grid and
// cluster and the default country.
func (r *referenceResolver) City(ctx context.Context, q store.Querier, name string) (EntityRef, error) {
	name = strings.TrimSpace(name)
	if err := validate.Check("city.create", map[string]string{"name": name}); err != nil {
		return EntityRef{}, err
	}

	key := strings.ToLower(name)
	if id, ok := r.cities[key]; ok {
		return EntityRef{ID: id, Existing: true}, nil
	}
	if id, ok := r.pendingCities[key]; ok {
		return EntityRef{ID: id, Existing: true}, nil
	}

	city, err := q.GetCityByName(ctx, name)
	if err == nil {
		r.pendingCities[key] = city.ID
		return EntityRef{ID: city.ID, Existing: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return EntityRef{}, fmt.Errorf("look up city %q: %w", name, err)
	}

	city, err = q.CreateCity(ctx, store.CreateCityParams{
		Name:       name,
		MiniGridID: store.ToPgInt8(r.miniGridID),
		ClusterID:  store.ToPgInt8(r.clusterID),
		CountryID:  DefaultCountryID,
	})
	if err != nil {
		return EntityRef{}, fmt.Errorf("create city %q: %w", name, err)
	}
	r.pendingCities[key] = city.ID
	return EntityRef{ID: city.ID}, nil
}

// MeterType resolves a meter type from the sheet's per-unit energy figure,
// creating it when no type with the derived amperage and phase exists yet.
// Import-created meter types are always online.
func (r *referenceResolver) MeterType(ctx context.Context, q store.Querier, unitField string, phase int32) (EntityRef, error) {
	unit, err := strconv.ParseFloat(digitsAndDot(unitField), 64)
	if err != nil {
		return EntityRef{}, fmt.Errorf("unit value %q is not numeric", unitField)
	}

	maxCurrent := MaxCurrentAmps(unit, phase)
	if err := validate.Check("metertype.create", map[string]string{
		"max_current": strconv.FormatFloat(maxCurrent, 'f', -1, 64),
		"phase":       strconv.Itoa(int(phase)),
	}); err != nil {
		return EntityRef{}, err
	}

	key := meterTypeKey{maxCurrent: maxCurrent, phase: phase}
	if id, ok := r.meterTypes[key]; ok {
		return EntityRef{ID: id, Existing: true}, nil
	}
	if id, ok := r.pendingMeterTypes[key]; ok {
		return EntityRef{ID: id, Existing: true}, nil
	}

	mt, err := q.GetMeterType(ctx, store.GetMeterTypeParams{MaxCurrent: maxCurrent, Phase: phase})
	if err == nil {
		r.pendingMeterTypes[key] = mt.ID
		return EntityRef{ID: mt.ID, Existing: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return EntityRef{}, fmt.Errorf("look up meter type %v/%d: %w", maxCurrent, phase, err)
	}

	mt, err = q.CreateMeterType(ctx, store.CreateMeterTypeParams{
		MaxCurrent: maxCurrent,
		Phase:      phase,
		Online:     true,
	})
	if err != nil {
		return EntityRef{}, fmt.Errorf("create meter type %v/%d: %w", maxCurrent, phase, err)
	}
	r.pendingMeterTypes[key] = mt.ID
	return EntityRef{ID: mt.ID}, nil
}

// MaxCurrentAmps derives a meter's amperage rating from the energy per unit
// in kWh. Single-phase loads divide by 230V; three-phase by 400V * sqrt(3).
// The result is rounded to two decimals so equal inputs map to the same
// meter-type row.
func MaxCurrentAmps(unitKWh float64, phase int32) float64 {
	var amps float64
	if phase == 3 {
		amps = unitKWh * 1000 / (400 * math.Sqrt(3))
	} else {
		amps = unitKWh * 1000 / 230
	}
	return math.Round(amps*100) / 100
}

// digitsAndDot strips everything but digits and decimal points from a
// free-text numeric cell ("1,200.50 TZS" -> "1200.50").
func digitsAndDot(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
