// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Client ClientConfig `toml:"client"`
	Redis  RedisConfig  `toml:"redis"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// ClientConfig maps dialog and procedure-call settings.
type ClientConfig struct {
	Server   *string `toml:"server"`
	User     *string `toml:"user"`
	OnResult *string `toml:"on-result"`
	Prefill  *bool   `toml:"prefill"`
	Timeout  *string `toml:"timeout"`
	Locale   *string `toml:"locale"`
}

// RedisConfig maps the Redis connection used by the cache and the realtime bus.
type RedisConfig struct {
	Addr     *string `toml:"addr"`
	Password *string `toml:"password"`
	DB       *int    `toml:"db"`
	Channel  *string `toml:"channel"`
}

// ServerConfig maps procedure server settings.
type ServerConfig struct {
	Listen    *string `toml:"listen"`
	StartYear *int    `toml:"start-year"`
	EndYear   *int    `toml:"end-year"`
	DB        *string `toml:"db"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if cfg.Client.Timeout != nil {
		if _, err := ParseTimeout(*cfg.Client.Timeout); err != nil {
			return FileConfig{}, err
		}
	}
	return cfg, nil
}

// ParseTimeout parses a Go duration such as "30s". It must be positive.
func ParseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive (got %s)", s)
	}
	return d, nil
}
