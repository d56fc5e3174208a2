package pgxdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bjaus/apischema"
)

// Tracer is a pgx.QueryTracer recording each query into the apischema SQL
// log of its context. Queries issued outside a logging endpoint are not
// recorded.
type Tracer struct{}

var _ pgx.QueryTracer = Tracer{}

type traceKey struct{}

type traceStart struct {
	sql   string
	args  []any
	start time.Time
}

// TraceQueryStart implements pgx.QueryTracer.
func (Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	if _, ok := apischema.QueryLogFrom(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, traceStart{
		sql:   data.SQL,
		args:  data.Args,
		start: time.Now(),
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	apischema.RecordQuery(ctx, apischema.Query{
		SQL:      st.sql,
		Args:     st.args,
		Duration: time.Since(st.start),
		Err:      data.Err,
	})
}
