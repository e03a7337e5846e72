package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/TrendImport/internal/adapters/textimport"
	"github.com/ghalamif/TrendImport/internal/ports"
)

type Config struct {
	Import    ImportConfig    `yaml:"import"`
	Policy    ports.Policy    `yaml:"policy"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	WAL       WALConfig       `yaml:"wal"`
	Log       LogConfig       `yaml:"log"`
}

// ImportConfig selects the files to import and how their text is read.
type ImportConfig struct {
	Files          []string `yaml:"files"`
	WatchDir       string   `yaml:"watch_dir"`
	Channel        string   `yaml:"channel"`
	Locale         string   `yaml:"locale"`
	Timezone       string   `yaml:"timezone"`
	AllowNonFinite bool     `yaml:"allow_non_finite"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 10 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 100_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 5_000
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.Import.Timezone == "" {
		c.Import.Timezone = "UTC"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "samples"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	if len(c.Import.Files) == 0 && c.Import.WatchDir == "" {
		return fmt.Errorf("import.files or import.watch_dir is required")
	}
	if _, err := c.Import.Options(); err != nil {
		return fmt.Errorf("import config: %w", err)
	}
	if c.Timescale.ConnString == "" {
		return fmt.Errorf("timescale.conn_string is required")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	return nil
}

// Options resolves locale and timezone into importer options. An empty
// locale means the process locale.
func (c ImportConfig) Options() (textimport.Options, error) {
	opts := textimport.Options{
		AllowNonFinite: c.AllowNonFinite,
		Channel:        c.Channel,
	}

	if c.Locale == "" {
		opts.Separators = textimport.SystemSeparators()
	} else {
		tag, err := textimport.ParseLocale(c.Locale)
		if err != nil {
			return opts, fmt.Errorf("locale %q: %w", c.Locale, err)
		}
		opts.Separators = textimport.SeparatorsFor(tag)
	}

	tz := c.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return opts, fmt.Errorf("timezone %q: %w", tz, err)
	}
	opts.Location = loc
	return opts, nil
}
