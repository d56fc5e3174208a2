package apischema_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apischema"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := apischema.DefaultSettings()
	assert.True(t, s.Transaction)
	assert.True(t, s.SQLLogging)
	assert.True(t, s.SQLLoggingReindent)
	assert.True(t, s.ShowPermissions)
	assert.True(t, s.ActionDefaultsEmpty)
	assert.False(t, s.Debug)
	assert.Equal(t, "/api-docs/", s.DocsPrefix)
	assert.Equal(t, "openapi", s.OpenAPIURLName)
}

func TestParseSettings(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		yaml    string
		want    func(s *apischema.Settings)
		wantErr bool
	}{
		"empty keeps defaults": {
			yaml: "",
			want: func(*apischema.Settings) {},
		},
		"overrides named keys only": {
			yaml: "transaction: false\ndebug: true\ndocs_prefix: /docs/\n",
			want: func(s *apischema.Settings) {
				s.Transaction = false
				s.Debug = true
				s.DocsPrefix = "/docs/"
			},
		},
		"all keys": {
			yaml: `
transaction: false
sql_logging: false
sql_logging_reindent: false
show_permissions: false
action_defaults_empty: false
debug: true
docs_prefix: /schema/
openapi_url_name: spec
`,
			want: func(s *apischema.Settings) {
				*s = apischema.Settings{
					Debug:          true,
					DocsPrefix:     "/schema/",
					OpenAPIURLName: "spec",
				}
			},
		},
		"invalid yaml": {
			yaml:    "transaction: [",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := apischema.ParseSettings([]byte(tc.yaml))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := apischema.DefaultSettings()
			tc.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("settings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sql_logging_reindent: false\n"), 0o600))

	s, err := apischema.LoadSettings(path)
	require.NoError(t, err)
	assert.False(t, s.SQLLoggingReindent)
	assert.True(t, s.SQLLogging)

	_, err = apischema.LoadSettings(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
