package store

import (
	"context"
	"fmt"
)

const orderColumns = `id, order_id, type, customer_id, meter_id, amount, power_code,
token, purchased_at, first_name, last_name, email, phone_number, national_id_number,
city_name, state_name, mini_grid_id, external_customer_id, product_meta, created_at, updated_at`

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByOrderID = `
SELECT ` + orderColumns + `
FROM orders
WHERE order_id = $1
`

// GetOrderByOrderID resolves an order by its generated business identifier.
// Returns pgx.ErrNoRows when no order matches.
func (q *Queries) GetOrderByOrderID(ctx context.Context, orderID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByOrderID, orderID))
}

const getOrderByToken = `
SELECT ` + orderColumns + `
FROM orders
WHERE token = $1
`

// GetOrderByToken resolves an order by vending token.
// Returns pgx.ErrNoRows when no order matches.
func (q *Queries) GetOrderByToken(ctx context.Context, token string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByToken, token))
}

const createOrder = `
INSERT INTO orders (order_id, type, customer_id, meter_id, amount, power_code,
	token, purchased_at, first_name, last_name, email, phone_number, national_id_number,
	city_name, state_name, mini_grid_id, external_customer_id, product_meta)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING ` + orderColumns + `
`

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderID, arg.Type, arg.CustomerID, arg.MeterID, arg.Amount, arg.PowerCode,
		arg.Token, arg.PurchasedAt, arg.FirstName, arg.LastName, arg.Email, arg.PhoneNumber,
		arg.NationalIDNumber, arg.CityName, arg.StateName, arg.MiniGridID,
		arg.ExternalCustomerID, arg.ProductMeta)
	return scanOrder(row)
}

const updateOrder = `
UPDATE orders
SET type = $2, customer_id = $3, meter_id = $4, amount = $5, power_code = $6,
    token = $7, purchased_at = $8, first_name = $9, last_name = $10, email = $11,
    phone_number = $12, national_id_number = $13, city_name = $14, state_name = $15,
    mini_grid_id = $16, external_customer_id = $17, product_meta = $18,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns + `
`

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID, arg.Type, arg.CustomerID, arg.MeterID, arg.Amount, arg.PowerCode,
		arg.Token, arg.PurchasedAt, arg.FirstName, arg.LastName, arg.Email,
		arg.PhoneNumber, arg.NationalIDNumber, arg.CityName, arg.StateName,
		arg.MiniGridID, arg.ExternalCustomerID, arg.ProductMeta)
	return scanOrder(row)
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1 = '' OR type = $1)
  AND ($2 = '' OR order_id ILIKE '%' || $2 || '%'
	OR first_name ILIKE '%' || $2 || '%'
	OR last_name ILIKE '%' || $2 || '%'
	OR token ILIKE '%' || $2 || '%')
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Type, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1
`

func (q *Queries) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d not found", id)
	}
	return nil
}

const getEarliestPendingMeterOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1 AND type = 'meter_order' AND meter_id IS NULL
ORDER BY created_at, id
LIMIT 1
`

// GetEarliestPendingMeterOrder returns the oldest meter_order of the customer
// that has no meter attached yet. Returns pgx.ErrNoRows when none is pending.
func (q *Queries) GetEarliestPendingMeterOrder(ctx context.Context, customerID int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getEarliestPendingMeterOrder, customerID))
}

const assignMeterToOrder = `
UPDATE orders
SET meter_id = $2,
    external_customer_id = COALESCE($3, external_customer_id),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns + `
`

func (q *Queries) AssignMeterToOrder(ctx context.Context, arg AssignMeterToOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, assignMeterToOrder, arg.ID, arg.MeterID, arg.ExternalCustomerID))
}

const listPendingMeterOrders = `
SELECT o.id, o.first_name, o.last_name, m.serial_number, o.amount,
	mt.max_current::float8, o.token, o.purchased_at
FROM orders o
LEFT JOIN meters m ON m.id = o.meter_id
LEFT JOIN meter_types mt ON mt.id = m.meter_type_id
WHERE o.type = 'meter_order' AND o.meter_id IS NULL
  AND ($1::timestamptz IS NULL OR o.purchased_at >= $1)
  AND ($2::timestamptz IS NULL OR o.purchased_at <= $2)
ORDER BY o.purchased_at, o.id
`

// ListPendingMeterOrders feeds the vending-records export: meter orders still
// awaiting a meter, optionally bounded by purchase window.
func (q *Queries) ListPendingMeterOrders(ctx context.Context, arg ListPendingMeterOrdersParams) ([]PendingVendingRow, error) {
	rows, err := q.db.Query(ctx, listPendingMeterOrders, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingVendingRow
	for rows.Next() {
		var r PendingVendingRow
		if err := rows.Scan(&r.OrderID, &r.FirstName, &r.LastName, &r.SerialNumber,
			&r.Amount, &r.MaxCurrent, &r.Token, &r.PurchasedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const orderAnalytics = `
SELECT type, COUNT(*), COALESCE(SUM(amount), 0)::float8
FROM orders
WHERE ($1::timestamptz IS NULL OR purchased_at >= $1)
  AND ($2::timestamptz IS NULL OR purchased_at <= $2)
GROUP BY type
ORDER BY type
`

// OrderAnalytics aggregates order counts and revenue per type, optionally
// bounded by purchase window.
func (q *Queries) OrderAnalytics(ctx context.Context, arg OrderAnalyticsParams) ([]OrderTypeStat, error) {
	rows, err := q.db.Query(ctx, orderAnalytics, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderTypeStat
	for rows.Next() {
		var s OrderTypeStat
		if err := rows.Scan(&s.Type, &s.Orders, &s.Amount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const createOrderAddress = `
INSERT INTO order_addresses (order_id, type, first_name, last_name, address1,
	address2, city, state, phone_number)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (order_id, type) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	address1 = EXCLUDED.address1,
	address2 = EXCLUDED.address2,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	phone_number = EXCLUDED.phone_number
RETURNING id, order_id, type, first_name, last_name, address1, address2, city, state, phone_number
`

// CreateOrderAddress upserts the billing or shipping sub-record of an order;
// an order carries at most one address per type.
func (q *Queries) CreateOrderAddress(ctx context.Context, arg CreateOrderAddressParams) (OrderAddress, error) {
	row := q.db.QueryRow(ctx, createOrderAddress,
		arg.OrderID, arg.Type, arg.FirstName, arg.LastName, arg.Address1,
		arg.Address2, arg.City, arg.State, arg.PhoneNumber)
	var a OrderAddress
	err := row.Scan(&a.ID, &a.OrderID, &a.Type, &a.FirstName, &a.LastName,
		&a.Address1, &a.Address2, &a.City, &a.State, &a.PhoneNumber)
	return a, err
}

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderID, &o.Type, &o.CustomerID, &o.MeterID, &o.Amount,
		&o.PowerCode, &o.Token, &o.PurchasedAt, &o.FirstName, &o.LastName, &o.Email,
		&o.PhoneNumber, &o.NationalIDNumber, &o.CityName, &o.StateName, &o.MiniGridID,
		&o.ExternalCustomerID, &o.ProductMeta, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
