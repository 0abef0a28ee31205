package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PULSE"

// Config is the runtime configuration of every pulse command.
type Config struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	// Timezone is an IANA zone name; empty means the host's local zone.
	Timezone       string   `mapstructure:"timezone" yaml:"timezone"`
	Listen         string   `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	WindowDays     int      `mapstructure:"window_days" yaml:"window_days"`
	MaxOccurrences int      `mapstructure:"max_occurrences" yaml:"max_occurrences"`

	ReminderLeadMinutes int `mapstructure:"reminder_lead_minutes" yaml:"reminder_lead_minutes"`
	// ReminderRefresh is a five-field cron spec or a @descriptor.
	ReminderRefresh     string `mapstructure:"reminder_refresh" yaml:"reminder_refresh"`
	ReminderHorizonDays int    `mapstructure:"reminder_horizon_days" yaml:"reminder_horizon_days"`
	SchedulerBuffer     int    `mapstructure:"scheduler_buffer" yaml:"scheduler_buffer"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// Dir is the directory holding the default config, database and state.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pulse"
	}
	return filepath.Join(home, ".pulse")
}

func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		DatabasePath:        filepath.Join(dir, "pulse.db"),
		Timezone:            "",
		Listen:              "127.0.0.1:8080",
		AllowedOrigins:      []string{"http://localhost:3000"},
		WindowDays:          7,
		MaxOccurrences:      5000,
		ReminderLeadMinutes: 10,
		ReminderRefresh:     "*/5 * * * *",
		ReminderHorizonDays: 2,
		SchedulerBuffer:     64,
		LogLevel:            "info",
		StatePath:           filepath.Join(dir, "agenda-state.json"),
	}
}

// Load reads the YAML file at path and applies PULSE_* environment
// overrides on top. A missing file is created with the defaults first.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("config: write defaults: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("window_days", d.WindowDays)
	v.SetDefault("max_occurrences", d.MaxOccurrences)
	v.SetDefault("reminder_lead_minutes", d.ReminderLeadMinutes)
	v.SetDefault("reminder_refresh", d.ReminderRefresh)
	v.SetDefault("reminder_horizon_days", d.ReminderHorizonDays)
	v.SetDefault("scheduler_buffer", d.SchedulerBuffer)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("state_path", d.StatePath)
}

// Normalize replaces zero and negative values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = d.DatabasePath
	}
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = d.Listen
	}
	if c.WindowDays <= 0 {
		c.WindowDays = d.WindowDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = d.MaxOccurrences
	}
	if c.ReminderLeadMinutes < 0 {
		c.ReminderLeadMinutes = 0
	}
	if strings.TrimSpace(c.ReminderRefresh) == "" {
		c.ReminderRefresh = d.ReminderRefresh
	}
	if c.ReminderHorizonDays <= 0 {
		c.ReminderHorizonDays = d.ReminderHorizonDays
	}
	if c.SchedulerBuffer <= 0 {
		c.SchedulerBuffer = d.SchedulerBuffer
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = d.LogLevel
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{}
	}
}

func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.ReminderRefresh); err != nil {
		return fmt.Errorf("config: reminder_refresh %q: %w", c.ReminderRefresh, err)
	}
	return nil
}

// Location resolves Timezone, defaulting to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadMinutes) * time.Minute
}

// Save writes cfg as YAML through a temp file and rename, leaving the
// file readable by the owner only.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pulse-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
