package apischema

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// sqlLoggingLayer captures the queries issued during the inner call and
// prints them once it returns, whether or not it failed.
func sqlLoggingLayer(s *Settings, callback func(Query)) layer {
	out := s.sqlLogOutput()
	logger := s.logger()
	reindent := s.SQLLoggingReindent

	return func(next endpoint) endpoint {
		return func(ctx context.Context, ev *Event) (*Response, error) {
			ctx, log := WithQueryLog(ctx)
			ev.Request = ev.Request.WithContext(ctx)

			defer func() {
				queries := log.Queries()
				for _, q := range queries {
					if callback != nil {
						callback(q)
					}
					logger.LogAttrs(ctx, slog.LevelDebug, "sql query",
						slog.Duration("duration", q.Duration),
						slog.String("sql", q.SQL),
					)
				}
				//nolint:errcheck,gosec // diagnostics are best-effort
				printQueries(out, queries, reindent)
			}()

			return next(ctx, ev)
		}
	}
}

// printQueries writes each query as a "[SQL] Time:" header line followed by
// the formatted statement indented by two spaces.
func printQueries(w io.Writer, queries []Query, reindent bool) error {
	if len(queries) == 0 {
		return nil
	}
	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "[SQL] Time: %.3f\n", q.Duration.Seconds())
		for line := range strings.SplitSeq(FormatSQL(q.SQL, reindent), "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
