// Package store provides the persistence API for the vending back office.
// All queries run against PostgreSQL through pgx; Queries can be bound to a
// pool or to a transaction, and Pool adds transaction scoping on top.
package store

import (
	"context"
	"embed"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations
var migrationFiles embed.FS

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Querier is the persistence API consumed by the import pipeline and the
// web layer. *Queries implements it against a live database; tests provide
// in-memory fakes.
type Querier interface {
	GetCityByName(ctx context.Context, name string) (City, error)
	CreateCity(ctx context.Context, arg CreateCityParams) (City, error)

	GetMeterType(ctx context.Context, arg GetMeterTypeParams) (MeterType, error)
	CreateMeterType(ctx context.Context, arg CreateMeterTypeParams) (MeterType, error)

	GetPersonByPhone(ctx context.Context, phone string) (Person, error)
	CreatePerson(ctx context.Context, arg CreatePersonParams) (Person, error)

	GetMeterBySerial(ctx context.Context, serialNumber string) (Meter, error)
	CreateMeter(ctx context.Context, arg CreateMeterParams) (Meter, error)

	CreateDevice(ctx context.Context, arg CreateDeviceParams) (Device, error)

	GetOrder(ctx context.Context, id int64) (Order, error)
	GetOrderByOrderID(ctx context.Context, orderID string) (Order, error)
	GetOrderByToken(ctx context.Context, token string) (Order, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	OrderAnalytics(ctx context.Context, arg OrderAnalyticsParams) ([]OrderTypeStat, error)
	CreateOrderAddress(ctx context.Context, arg CreateOrderAddressParams) (OrderAddress, error)

	GetEarliestPendingMeterOrder(ctx context.Context, customerID int64) (Order, error)
	AssignMeterToOrder(ctx context.Context, arg AssignMeterToOrderParams) (Order, error)
	ListPendingMeterOrders(ctx context.Context, arg ListPendingMeterOrdersParams) ([]PendingVendingRow, error)
}

// Queries executes statements against the bound DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db (a pool or an open transaction).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Runner is the Querier plus per-row transaction scoping.
// The batch orchestrator depends on this rather than on *pgxpool.Pool so
// tests can substitute an in-memory implementation.
type Runner interface {
	Querier
	RunInTx(ctx context.Context, fn func(q Querier) error) error
}

// Pool implements Runner against a pgx connection pool.
type Pool struct {
	*Queries
	pool *pgxpool.Pool
}

// NewPool wraps a pgx pool into a Runner.
func NewPool(pool *pgxpool.Pool) *Pool {
	return &Pool{Queries: New(pool), pool: pool}
}

// RunInTx runs fn inside a single transaction. The transaction is rolled
// back when fn returns an error and committed otherwise.
func (p *Pool) RunInTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(New(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema files in lexical order.
// Statements are written to be idempotent, so re-running at boot is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
