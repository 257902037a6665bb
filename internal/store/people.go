package store

import "context"

const personColumns = `id, title, name, surname, phone, national_id_number,
external_customer_id, mini_grid_id, city_id, is_customer, created_at, updated_at`

const getPersonByPhone = `
SELECT ` + personColumns + `
FROM people
WHERE phone = $1
`

// GetPersonByPhone resolves a person by the phone natural key.
// Returns pgx.ErrNoRows when no person matches.
func (q *Queries) GetPersonByPhone(ctx context.Context, phone string) (Person, error) {
	row := q.db.QueryRow(ctx, getPersonByPhone, phone)
	return scanPerson(row)
}

const createPerson = `
INSERT INTO people (title, name, surname, phone, national_id_number,
	external_customer_id, mini_grid_id, city_id, is_customer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + personColumns + `
`

func (q *Queries) CreatePerson(ctx context.Context, arg CreatePersonParams) (Person, error) {
	row := q.db.QueryRow(ctx, createPerson,
		arg.Title, arg.Name, arg.Surname, arg.Phone, arg.NationalIDNumber,
		arg.ExternalCustomerID, arg.MiniGridID, arg.CityID, arg.IsCustomer)
	return scanPerson(row)
}

func scanPerson(row interface{ Scan(...any) error }) (Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.Title, &p.Name, &p.Surname, &p.Phone, &p.NationalIDNumber,
		&p.ExternalCustomerID, &p.MiniGridID, &p.CityID, &p.IsCustomer, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
