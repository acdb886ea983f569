package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "coursetrace.db", cfg.DB.Path)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 5000, cfg.Derive.MaxStatements)
	require.Equal(t, 300, cfg.Derive.IdleGapCeilingSeconds)
	require.Equal(t, 80, cfg.Derive.ExpectedStatementsPerCourse)
	require.Equal(t, 60, cfg.Derive.MinIntervalSeconds)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, 10000, cfg.Verbs.UsageCacheCap)
	require.Equal(t, 256, cfg.Worker.QueueSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COURSETRACE_SERVER_PORT", "9191")
	t.Setenv("COURSETRACE_DB_PATH", "/tmp/ct.db")
	t.Setenv("COURSETRACE_DERIVE_MAX_STATEMENTS", "100")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "/tmp/ct.db", cfg.DB.Path)
	require.Equal(t, 100, cfg.Derive.MaxStatements)
}

func TestLoad_InvalidEnvInt(t *testing.T) {
	t.Setenv("COURSETRACE_SERVER_PORT", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
log:
  level: debug
derive:
  expected_statements_per_course: 40
`), 0o600))
	t.Setenv("COURSETRACE_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 40, cfg.Derive.ExpectedStatementsPerCourse)
	// Untouched keys keep their defaults.
	require.Equal(t, "coursetrace.db", cfg.DB.Path)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))
	t.Setenv("COURSETRACE_CONFIG_PATH", path)
	t.Setenv("COURSETRACE_SERVER_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 6060, cfg.Server.Port)
}
