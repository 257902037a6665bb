package store

import "context"

const createDevice = `
INSERT INTO devices (person_id, device_serial)
VALUES ($1, $2)
RETURNING id, person_id, device_serial, created_at, updated_at
`

func (q *Queries) CreateDevice(ctx context.Context, arg CreateDeviceParams) (Device, error) {
	row := q.db.QueryRow(ctx, createDevice, arg.PersonID, arg.DeviceSerial)
	var d Device
	err := row.Scan(&d.ID, &d.PersonID, &d.DeviceSerial, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
