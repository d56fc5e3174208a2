// Command sample serves a small users API built with apischema.
//
// Run with the in-memory store:
//
//	go run ./cmd/sample
//
// Or against PostgreSQL, with settings from a YAML file:
//
//	go run ./cmd/sample -dsn postgres://localhost/sample -config settings.yaml
//
// Print the OpenAPI document:
//
//	go run ./cmd/sample -spec
//	go run ./cmd/sample -spec -o openapi.json
//
// Then explore (send "Authorization: Token admin" for admin access):
//
//	GET  http://localhost:8080/api-docs/swagger-ui/   documentation
//	GET  http://localhost:8080/v1/users/               list users (admin)
//	POST http://localhost:8080/v1/users/               create user
//	GET  http://localhost:8080/v1/users/{pk}/          get user
//	GET  http://localhost:8080/v1/users/{pk}/echo/     echo user
//	GET  http://localhost:8080/v1/users/square/?n=5    square a number
//	GET  http://localhost:8080/v1/health/              health check
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/bjaus/apischema"
	"github.com/bjaus/apischema/pgxdb"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (default: in-memory store)")
	config := flag.String("config", "", "Settings YAML file")
	specFlag := flag.Bool("spec", false, "Print the OpenAPI spec to stdout and exit")
	outFlag := flag.String("o", "", "Output file for the spec (requires -spec)")
	yamlFlag := flag.Bool("yaml", false, "Print the spec as YAML (requires -spec)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, *addr, *dsn, *config, *specFlag, *yamlFlag, *outFlag); err != nil {
		logger.Error("sample failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr, dsn, config string, spec, asYAML bool, out string) error {
	settings := apischema.DefaultSettings()
	if config != "" {
		s, err := apischema.LoadSettings(config)
		if err != nil {
			return err
		}
		settings = s
	}
	settings.Logger = logger

	var store userStore = newMemoryStore()
	if dsn != "" {
		pool, err := pgxdb.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		settings.Transactor = pgxdb.NewTransactor(pool)
		store = &pgStore{db: pool}
	}
	apischema.SetDefault(settings)

	r := newRouter(store, logger)
	if spec {
		return writeSpec(r, out, asYAML)
	}

	logger.Info("starting server", "addr", addr, "docs", "http://localhost"+addr+settings.DocsPrefix+"swagger-ui/")
	if err := r.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newRouter(store userStore, logger *slog.Logger) *apischema.Router {
	r := apischema.NewRouter(
		apischema.WithTitle("Sample API"),
		apischema.WithVersion("1.0.0"),
		apischema.WithTagDescriptions(map[string]string{
			"users": "User accounts",
			"ops":   "Operational endpoints",
		}),
		apischema.WithSecurityScheme("token", &openapi3.SecurityScheme{
			Type:        "apiKey",
			In:          "header",
			Name:        "Authorization",
			Description: `Send "Token admin" or "Token member".`,
		}),
	)

	r.Use(apischema.Recovery())
	r.Use(apischema.RequestID())
	r.Use(apischema.Logger(logger))
	r.Use(tokenAuth(map[string]principal{
		"admin":  {admin: true},
		"member": {},
	}))

	r.MountDocs("")

	v1 := r.Group("/v1", apischema.WithGroupMiddleware(apischema.RateLimit(apischema.RateLimitConfig{
		Rate:  50,
		Burst: 100,
	})))

	apischema.Get(v1, "/health/{$}", handleHealth,
		apischema.WithDoc("Health check\n\nReturns the current server time."),
		apischema.WithResponse(apischema.Of[HealthOut]()),
		apischema.WithTags("ops"),
		apischema.WithTransaction(false),
	)

	v1.Register("/users/", newUserViews(store))
	return r
}

// HealthOut is the health check body.
type HealthOut struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func handleHealth(context.Context, *apischema.Event) (any, error) {
	return HealthOut{Status: "ok", Time: time.Now().UTC()}, nil
}

func writeSpec(r *apischema.Router, outFile string, asYAML bool) error {
	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return err
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Error("failed to close output file", "err", err)
			}
		}()
		w = f
	}
	if asYAML {
		return r.WriteSpecYAML(w)
	}
	return r.WriteSpec(w)
}
