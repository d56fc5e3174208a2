package apischema

import "context"

// Transactor runs fn inside an atomic boundary: the work commits when fn
// returns nil and rolls back when it returns an error or panics. The context
// passed to fn carries whatever the implementation needs to route queries
// into the transaction.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactorFunc adapts a function into a Transactor.
type TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Atomic calls f.
func (f TransactorFunc) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NopTransactor runs fn without a transaction. It is used when the settings
// carry no Transactor.
type NopTransactor struct{}

// Atomic calls fn directly.
func (NopTransactor) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
