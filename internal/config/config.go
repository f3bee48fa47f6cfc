package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// FileName is the config file incr looks for in the working directory and
// the home directory.
const FileName = ".incr.toml"

// Config holds all runtime configuration for an incr invocation.
// Values are populated from .incr.toml, INCR_* env vars, and CLI flags.
type Config struct {
	DBPath      string `mapstructure:"db_path" toml:"db_path"`
	LogLevel    string `mapstructure:"log_level" toml:"log_level"`
	LogFormat   string `mapstructure:"log_format" toml:"log_format"`
	Parallelism int    `mapstructure:"parallelism" toml:"parallelism"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DBPath:      ".incr/sheet.db",
		LogLevel:    "warn",
		LogFormat:   "text",
		Parallelism: 4,
	}
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	d := Defaults()
	viper.SetDefault("db_path", d.DBPath)
	viper.SetDefault("log_level", d.LogLevel)
	viper.SetDefault("log_format", d.LogFormat)
	viper.SetDefault("parallelism", d.Parallelism)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.Parallelism < 0 {
		return Config{}, fmt.Errorf("parallelism must be >= 0, got %d", cfg.Parallelism)
	}
	return cfg, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Write encodes cfg as TOML to path. It refuses to overwrite an existing
// file unless force is set.
func Write(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
