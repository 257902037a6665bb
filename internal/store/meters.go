package store

import "context"

const meterColumns = `id, serial_number, meter_type_id, manufacturer_id,
connection_type_id, connection_group_id, tariff_id, in_use, created_at, updated_at`

const getMeterBySerial = `
SELECT ` + meterColumns + `
FROM meters
WHERE serial_number = $1
`

// GetMeterBySerial resolves a meter by serial number.
// Returns pgx.ErrNoRows when no meter matches.
func (q *Queries) GetMeterBySerial(ctx context.Context, serialNumber string) (Meter, error) {
	row := q.db.QueryRow(ctx, getMeterBySerial, serialNumber)
	return scanMeter(row)
}

const createMeter = `
INSERT INTO meters (serial_number, meter_type_id, manufacturer_id,
	connection_type_id, connection_group_id, tariff_id, in_use)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + meterColumns + `
`

func (q *Queries) CreateMeter(ctx context.Context, arg CreateMeterParams) (Meter, error) {
	row := q.db.QueryRow(ctx, createMeter,
		arg.SerialNumber, arg.MeterTypeID, arg.ManufacturerID,
		arg.ConnectionTypeID, arg.ConnectionGroupID, arg.TariffID, arg.InUse)
	return scanMeter(row)
}

func scanMeter(row interface{ Scan(...any) error }) (Meter, error) {
	var m Meter
	err := row.Scan(&m.ID, &m.SerialNumber, &m.MeterTypeID, &m.ManufacturerID,
		&m.ConnectionTypeID, &m.ConnectionGroupID, &m.TariffID, &m.InUse, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
