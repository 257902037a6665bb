package store

import "context"

const getCityByName = `
SELECT id, name, mini_grid_id, cluster_id, country_id, created_at, updated_at
FROM cities
WHERE lower(name) = lower(trim($1))
`

// GetCityByName resolves a city by its normalized name.
// Returns pgx.ErrNoRows when no city matches.
func (q *Queries) GetCityByName(ctx context.Context, name string) (City, error) {
	row := q.db.QueryRow(ctx, getCityByName, name)
	var c City
	err := row.Scan(&c.ID, &c.Name, &c.MiniGridID, &c.ClusterID, &c.CountryID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const createCity = `
INSERT INTO cities (name, mini_grid_id, cluster_id, country_id)
VALUES (trim($1), $2, $3, $4)
RETURNING id, name, mini_grid_id, cluster_id, country_id, created_at, updated_at
`

func (q *Queries) CreateCity(ctx context.Context, arg CreateCityParams) (City, error) {
	row := q.db.QueryRow(ctx, createCity, arg.Name, arg.MiniGridID, arg.ClusterID, arg.CountryID)
	var c City
	err := row.Scan(&c.ID, &c.Name, &c.MiniGridID, &c.ClusterID, &c.CountryID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
