// Package config is the YAML-backed application configuration, with
// first-run creation and atomic saves.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one calendar source: a local .ics file (path) or
// an HTTP subscription (url). Exactly one of the two should be set.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// URL is an ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone floating and date-only values are read
	// in, and the zone agenda output is expressed in. Empty means the
	// system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// HorizonDays is the number of future days an agenda query covers.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// refreshing sources in watch mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DefaultAlarm, when non-empty, is an ISO-8601 duration (e.g.
	// "-PT15M") applied as a start-relative reminder to events that
	// carry no alarms of their own.
	DefaultAlarm string `yaml:"default_alarm,omitempty" json:"default_alarm,omitempty"`

	// CacheDir is where HTTP sources cache their bodies and validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Sources is the list of configured calendars.
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		HorizonDays: 7,
		RefreshCron: "*/15 * * * *",
		CacheDir:    "./var/ics-cache",
		Sources:     []SourceConfig{},
	}
}

// Normalize fills in missing or zero values so partially-filled configs
// from older versions still behave.
func (c *Config) Normalize() {
	if c.HorizonDays <= 0 {
		c.HorizonDays = 7
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Load reads configuration from the given YAML path. A missing file is a
// first run: the default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically: temp file in the same directory,
// chmod 0600, then rename. The parent directory is created if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".jackal-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
