package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gurin-alexey/pulse-app-sub001/internal/config"
	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/scheduler"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	store    *storage.SQLiteRepository
	resolver *series.Resolver
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	level := appLog.ParseLevel(cfg.LogLevel)
	if opts.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return cfg, nil
}

// openApp loads config, opens and migrates the database and builds the
// resolver.
func openApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if err := ensureDir(cfg.DatabasePath); err != nil {
		return nil, err
	}
	store, err := storage.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := storage.MigrateUp(store.DB()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.DatabasePath, err)
	}
	resolver := series.NewResolver(store,
		series.WithLocation(loc),
		series.WithMaxOccurrences(cfg.MaxOccurrences),
	)
	appLog.Debug("cli: app opened", "database", cfg.DatabasePath, "timezone", loc.String())
	return &app{cfg: cfg, loc: loc, store: store, resolver: resolver}, nil
}

// ensureDir creates the parent directory of a database file.
func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) newPlanner(engine *scheduler.Engine) *scheduler.Planner {
	return scheduler.NewPlanner(a.resolver, engine, scheduler.PlannerConfig{
		Lead:        a.cfg.ReminderLead(),
		HorizonDays: a.cfg.ReminderHorizonDays,
		Refresh:     a.cfg.ReminderRefresh,
		Location:    a.loc,
	})
}
