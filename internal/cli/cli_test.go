package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "pulse.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "database_path: " + dbPath + "\ntimezone: UTC\nlisten: 127.0.0.1:0\nreminder_refresh: \"@every 1h\"\nstate_path: " + filepath.Join(dir, "state.json") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seedWeekly(t *testing.T, cfgPath string) {
	t.Helper()
	a, err := openApp(&rootOptions{configPath: cfgPath})
	require.NoError(t, err)
	defer a.Close()

	due := model.MustParseDate("2024-01-01")
	_, err = a.resolver.Create(context.Background(), model.Task{
		ID: "T", Title: "Weekly review", DueDate: &due, RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO",
	})
	require.NoError(t, err)
	_, err = a.resolver.Skip(context.Background(), &model.Task{ID: "T", Title: "Weekly review", DueDate: &due, RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO"}, model.MustParseDate("2024-01-08"))
	require.NoError(t, err)
}

func TestMigrateCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")
	_, err = os.Stat(dbPath)
	require.NoError(t, err)

	out, err = run(t, "--config", cfgPath, "migrate", "--down")
	require.NoError(t, err)
	assert.Contains(t, out, "reverted schema")
}

func TestListCommandPrintsWindow(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	seedWeekly(t, cfgPath)

	out, err := run(t, "--config", cfgPath, "list", "--start", "2024-01-01", "--end", "2024-01-21")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2024-01-01  all-day"))
	assert.Contains(t, lines[0], "Weekly review  [T]")
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-15"))

	_, err = run(t, "--config", cfgPath, "list", "--start", "January")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	seedWeekly(t, cfgPath)

	out, err := run(t, "--config", cfgPath, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;BYDAY=MO")
	assert.Contains(t, out, "20240108")

	file := filepath.Join(t.TempDir(), "pulse.ics")
	out, err = run(t, "--config", cfgPath, "export", "--out", file)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 task(s)")
	body, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "UID:T@pulse")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	a, err := openApp(&rootOptions{configPath: cfgPath})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestUnknownConfigIsRejected(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("timezone: Nowhere/Land\n"), 0o600))
	_, err := run(t, "--config", cfgPath, "list")
	assert.Error(t, err)
}
