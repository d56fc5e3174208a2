package apischema

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Settings holds the process-wide defaults every endpoint inherits unless it
// overrides them.
type Settings struct {
	// Transaction runs handlers inside Transactor.Atomic.
	Transaction bool `yaml:"transaction"`

	// SQLLogging prints the queries a handler issued. It only takes effect
	// when Debug is also set.
	SQLLogging bool `yaml:"sql_logging"`

	// SQLLoggingReindent breaks logged SQL onto one line per clause.
	SQLLoggingReindent bool `yaml:"sql_logging_reindent"`

	// ShowPermissions prefixes operation descriptions with the permission list.
	ShowPermissions bool `yaml:"show_permissions"`

	// ActionDefaultsEmpty documents extra actions without a success response
	// as 204 No Content.
	ActionDefaultsEmpty bool `yaml:"action_defaults_empty"`

	// Debug enables diagnostics such as SQL logging.
	Debug bool `yaml:"debug"`

	// DocsPrefix is where MountDocs serves the documentation.
	DocsPrefix string `yaml:"docs_prefix"`

	// OpenAPIURLName is the path segment of the JSON document under DocsPrefix.
	OpenAPIURLName string `yaml:"openapi_url_name"`

	// DefaultPermissions are checked by the router for routes whose view set
	// declares no permissions of its own, and listed in every operation
	// description.
	DefaultPermissions []Permission `yaml:"-"`

	// Transactor provides the atomic boundary for the transaction layer.
	Transactor Transactor `yaml:"-"`

	// SQLLogOutput receives the printed SQL log. Defaults to os.Stdout.
	SQLLogOutput io.Writer `yaml:"-"`

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Transaction:         true,
		SQLLogging:          true,
		SQLLoggingReindent:  true,
		ShowPermissions:     true,
		ActionDefaultsEmpty: true,
		DocsPrefix:          "/api-docs/",
		OpenAPIURLName:      "openapi",
	}
}

var defaultSettings atomic.Pointer[Settings]

func init() {
	s := DefaultSettings()
	defaultSettings.Store(&s)
}

// Default returns the process-wide settings.
func Default() Settings {
	return *defaultSettings.Load()
}

// SetDefault replaces the process-wide settings. Endpoints resolve settings
// when they are decorated, so call it before building decorators.
func SetDefault(s Settings) {
	defaultSettings.Store(&s)
}

// ParseSettings decodes YAML over the built-in defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// LoadSettings reads a YAML settings file over the built-in defaults.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

func (s *Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Settings) sqlLogOutput() io.Writer {
	if s.SQLLogOutput != nil {
		return s.SQLLogOutput
	}
	return os.Stdout
}

func (s *Settings) transactor() Transactor {
	if s.Transactor != nil {
		return s.Transactor
	}
	return NopTransactor{}
}

// resolve returns the explicit value when set, otherwise the default.
func resolve(explicit *bool, def bool) bool {
	if explicit != nil {
		return *explicit
	}
	return def
}
