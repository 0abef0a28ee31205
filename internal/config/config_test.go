package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path: /tmp/pulse-test.db
timezone: Europe/Berlin
window_days: 14
allowed_origins:
  - https://app.example.com
reminder_refresh: "@every 10m"
`), 0o600))

	t.Setenv("PULSE_WINDOW_DAYS", "21")
	t.Setenv("PULSE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pulse-test.db", cfg.DatabasePath)
	assert.Equal(t, 21, cfg.WindowDays)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, DefaultConfig().MaxOccurrences, cfg.MaxOccurrences)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadNormalizesZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_days: 0\nscheduler_buffer: -3\nreminder_lead_minutes: -5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 64, cfg.SchedulerBuffer)
	assert.Equal(t, time.Duration(0), cfg.ReminderLead())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	badZone := filepath.Join(dir, "zone.yaml")
	require.NoError(t, os.WriteFile(badZone, []byte("timezone: Mars/Olympus\n"), 0o600))
	_, err := Load(badZone)
	assert.Error(t, err)

	badCron := filepath.Join(dir, "cron.yaml")
	require.NoError(t, os.WriteFile(badCron, []byte("reminder_refresh: whenever\n"), 0o600))
	_, err = Load(badCron)
	assert.Error(t, err)
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
