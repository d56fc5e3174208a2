// Package pgxdb connects apischema endpoints to PostgreSQL through pgx.
//
// It provides a Transactor for the transaction layer and a query tracer that
// feeds the SQL logging layer:
//
//	pool, err := pgxdb.Open(ctx, dsn)
//	s := apischema.DefaultSettings()
//	s.Transactor = pgxdb.NewTransactor(pool)
//
// Handlers reach the current transaction with pgxdb.Conn(ctx, pool).
package pgxdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bjaus/apischema"
)

// Querier is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool and *pgx.Conn implement it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Open creates a pool whose connections report every query to the SQL log
// carried by the query context.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = Tracer{}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

type txKey struct{}

// WithTx returns a context routing Conn to tx.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Conn returns the transaction carried by ctx, or db outside one.
func Conn(ctx context.Context, db Querier) Querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}

// Transactor implements apischema.Transactor on a pgx pool or connection.
type Transactor struct {
	db   Beginner
	opts pgx.TxOptions
}

var _ apischema.Transactor = (*Transactor)(nil)

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithTxOptions sets the isolation and access mode of new transactions.
func WithTxOptions(opts pgx.TxOptions) TransactorOption {
	return func(t *Transactor) {
		t.opts = opts
	}
}

// NewTransactor creates a Transactor beginning transactions on db.
func NewTransactor(db Beginner, opts ...TransactorOption) *Transactor {
	t := &Transactor{db: db}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Atomic runs fn in a transaction that commits when fn returns nil. Inside
// an outer transaction it uses a savepoint, so an inner failure rolls back
// only the inner work.
func (t *Transactor) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := TxFrom(ctx); ok {
		return pgx.BeginFunc(ctx, outer, func(sp pgx.Tx) error {
			return fn(WithTx(ctx, sp))
		})
	}
	return pgx.BeginTxFunc(ctx, t.db, t.opts, func(tx pgx.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}

// NotFound maps pgx.ErrNoRows to apischema.ErrNotFound.
func NotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apischema.ErrNotFound
	}
	return err
}

// Get scans the single row of a query into T by column name. No row is
// apischema.ErrNotFound.
func Get[T any](ctx context.Context, db Querier, sql string, args ...any) (T, error) {
	rows, err := Conn(ctx, db).Query(ctx, sql, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	return v, NotFound(err)
}

// GetOr422 is Get for lookups driven by client input: no row is a 422
// domain error instead of a 404.
func GetOr422[T any](ctx context.Context, db Querier, sql string, args ...any) (T, error) {
	v, err := Get[T](ctx, db, sql, args...)
	return apischema.ObjectOr422(v, err)
}

// List scans every row of a query into T by column name.
func List[T any](ctx context.Context, db Querier, sql string, args ...any) ([]T, error) {
	rows, err := Conn(ctx, db).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}
