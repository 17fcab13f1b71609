package config

import (
	"os"
	"path/filepath"
	"testing"

	"lraide/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"LRAIDE_CONFIG", "PORT", "GIN_MODE", "LOG_LEVEL", "FIT_TOLERANCE", "DOMAIN_PADDING",
	"ZOOM_STEP", "SNAPSHOT_DIR", "SNAPSHOT_DB_DRIVER", "SNAPSHOT_DB_URL", "METRICS_ENABLED",
}

// clearEnv isolates a test from the developer's shell and any .env file.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1e-9, cfg.Engine.FitTolerance)
	assert.Equal(t, 0.1, cfg.Engine.DomainPadding)
	assert.Equal(t, 1.2, cfg.Engine.ZoomStep)
	assert.Equal(t, "./snapshots", cfg.Storage.SnapshotDir)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lraide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
engine:
  fit_tolerance: 1e-6
  zoom_step: 1.5
storage:
  db_driver: sqlite
  db_url: file:snapshots.db
metrics:
  enabled: false
`), 0o644))
	t.Setenv("LRAIDE_CONFIG", path)
	t.Setenv("ZOOM_STEP", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 1e-6, cfg.Engine.FitTolerance)
	assert.Equal(t, 2.0, cfg.Engine.ZoomStep)
	assert.Equal(t, 0.1, cfg.Engine.DomainPadding)
	assert.Equal(t, "sqlite", cfg.Storage.DBDriver)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PORT")
	require.NoError(t, os.WriteFile(".env", []byte("PORT=7070\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero tolerance", map[string]string{"FIT_TOLERANCE": "0"}},
		{"padding too large", map[string]string{"DOMAIN_PADDING": "1.5"}},
		{"zoom step", map[string]string{"ZOOM_STEP": "0.5"}},
		{"unknown driver", map[string]string{"SNAPSHOT_DB_DRIVER": "mysql"}},
		{"driver without url", map[string]string{"SNAPSHOT_DB_DRIVER": "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LRAIDE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
