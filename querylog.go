package apischema

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Query is one database query captured during a handler call.
type Query struct {
	SQL      string
	Args     []any
	Duration time.Duration
	Err      error
}

// QueryLog collects the queries issued under one context. It is safe for
// concurrent use so handlers may query from several goroutines.
type QueryLog struct {
	mu      sync.Mutex
	queries []Query
}

// Queries returns a copy of the captured queries in issue order.
func (l *QueryLog) Queries() []Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.queries)
}

func (l *QueryLog) add(q Query) {
	l.mu.Lock()
	l.queries = append(l.queries, q)
	l.mu.Unlock()
}

type queryLogKey struct{}

// WithQueryLog returns a context that captures queries into a new log.
func WithQueryLog(ctx context.Context) (context.Context, *QueryLog) {
	log := &QueryLog{}
	return context.WithValue(ctx, queryLogKey{}, log), log
}

// QueryLogFrom returns the log capturing queries for ctx, if any.
func QueryLogFrom(ctx context.Context) (*QueryLog, bool) {
	log, ok := ctx.Value(queryLogKey{}).(*QueryLog)
	return log, ok
}

// RecordQuery appends q to the log carried by ctx. Database drivers call it;
// it is a no-op when nothing is capturing.
func RecordQuery(ctx context.Context, q Query) {
	if log, ok := QueryLogFrom(ctx); ok {
		log.add(q)
	}
}
