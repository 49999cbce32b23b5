package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remindsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// inTempDir runs the test from an empty directory so DefaultPath is absent.
func inTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "remindsync.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "Reminder", cfg.Notification.Heading)
	assert.Equal(t, "grant", cfg.Local.Alerting)
	assert.Equal(t, "grant", cfg.Local.Calendar)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, `
database:
  path: /tmp/reminders.db
log:
  format: json
local:
  calendar: deny
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reminders.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their defaults")
	assert.Equal(t, "deny", cfg.Local.Calendar)
}

func TestLoad_DefaultPathIsPickedUp(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile(DefaultPath, []byte("notification:\n  heading: Heads up\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Heads up", cfg.Notification.Heading)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, "log:\n  level: warn\n")
	t.Setenv("REMINDSYNC_LOG__LEVEL", "debug")
	t.Setenv("REMINDSYNC_LOCAL__ALERTING", "deny")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "deny", cfg.Local.Alerting)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	inTempDir(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"bad policy", "local:\n  alerting: maybe\n", "local.alerting"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"empty heading", "notification:\n  heading: \"\"\n", "notification.heading"},
		{"unknown key", "database:\n  driver: postgres\n", "database.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			path := writeConfig(t, tt.content)

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.path", envKey("REMINDSYNC_DATABASE__PATH"))
	assert.Equal(t, "log.level", envKey("REMINDSYNC_LOG__LEVEL"))
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		cfg := &Config{Log: LogConfig{Level: level}}
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "local.alerting", fieldPath([]string{"#Config", "local", "alerting"}))
	assert.Equal(t, "", fieldPath(nil))
}
