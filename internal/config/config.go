// Package config loads run settings from a YAML file, .env files and
// SUGARSURVEY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. SUGARSURVEY_DB_DSN.
const EnvPrefix = "SUGARSURVEY"

// Config holds all configuration settings.
type Config struct {
	Repos       string        `mapstructure:"repos"`
	DB          DBConfig      `mapstructure:"db"`
	Range       RangeConfig   `mapstructure:"range"`
	Workers     int           `mapstructure:"workers"`
	FileWorkers int           `mapstructure:"file_workers"`
	Exclude     []string      `mapstructure:"exclude"`
	Analyses    []string      `mapstructure:"analyses"`
	Log         LogConfig     `mapstructure:"log"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite3" or "pgx"
	DSN    string `mapstructure:"dsn"`
}

// RangeConfig bounds the sampled months, inclusive. An empty To means the
// current month.
type RangeConfig struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Repos:       "./download/source",
		DB:          DBConfig{Driver: store.DriverSQLite, DSN: "sugarsurvey.db"},
		Range:       RangeConfig{From: "2015-05"},
		Workers:     4,
		FileWorkers: 4,
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from path, or from .sugarsurvey.yaml in the
// working directory when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("repos", cfg.Repos)
	v.SetDefault("db.driver", cfg.DB.Driver)
	v.SetDefault("db.dsn", cfg.DB.DSN)
	v.SetDefault("range.from", cfg.Range.From)
	v.SetDefault("range.to", cfg.Range.To)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("file_workers", cfg.FileWorkers)
	v.SetDefault("exclude", []string{})
	v.SetDefault("analyses", []string{})
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("metrics.textfile", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".sugarsurvey")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides variables that are already set.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// Months resolves the configured range. now supplies the default end month.
func (c *Config) Months(now time.Time) (start, end month.Bucket, err error) {
	start, err = month.Parse(c.Range.From)
	if err != nil {
		return 0, 0, fmt.Errorf("range.from: %w", err)
	}
	if c.Range.To == "" {
		end = month.Of(now)
	} else if end, err = month.Parse(c.Range.To); err != nil {
		return 0, 0, fmt.Errorf("range.to: %w", err)
	}
	return start, end, nil
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := store.NormalizeDriver(c.DB.Driver); err != nil {
		errs = append(errs, fmt.Errorf("db.driver: %w", err))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.FileWorkers < 1 {
		errs = append(errs, fmt.Errorf("file_workers must be positive, got %d", c.FileWorkers))
	}
	if start, end, err := c.Months(time.Now()); err != nil {
		errs = append(errs, err)
	} else if end < start {
		errs = append(errs, fmt.Errorf("range.to %s precedes range.from %s", end, start))
	}
	return errors.Join(errs...)
}
