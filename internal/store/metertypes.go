package store

import "context"

const getMeterType = `
SELECT id, max_current, phase, online, created_at, updated_at
FROM meter_types
WHERE max_current = $1 AND phase = $2 AND online = TRUE
`

// GetMeterType resolves an online meter type by its business key.
// Returns pgx.ErrNoRows when no type matches.
func (q *Queries) GetMeterType(ctx context.Context, arg GetMeterTypeParams) (MeterType, error) {
	row := q.db.QueryRow(ctx, getMeterType, arg.MaxCurrent, arg.Phase)
	var mt MeterType
	err := row.Scan(&mt.ID, &mt.MaxCurrent, &mt.Phase, &mt.Online, &mt.CreatedAt, &mt.UpdatedAt)
	return mt, err
}

const createMeterType = `
INSERT INTO meter_types (max_current, phase, online)
VALUES ($1, $2, $3)
RETURNING id, max_current, phase, online, created_at, updated_at
`

func (q *Queries) CreateMeterType(ctx context.Context, arg CreateMeterTypeParams) (MeterType, error) {
	row := q.db.QueryRow(ctx, createMeterType, arg.MaxCurrent, arg.Phase, arg.Online)
	var mt MeterType
	err := row.Scan(&mt.ID, &mt.MaxCurrent, &mt.Phase, &mt.Online, &mt.CreatedAt, &mt.UpdatedAt)
	return mt, err
}
