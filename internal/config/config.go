// Package config loads CLI settings from defaults, an optional YAML file
// and WASCAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. WASCAP_KEYS_DIR.
const EnvPrefix = "WASCAP"

type Config struct {
	Keys KeysConfig `mapstructure:"keys"`
	Log  LogConfig  `mapstructure:"log"`
	Sign SignConfig `mapstructure:"sign"`
}

type KeysConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// SignConfig holds default validity offsets for new tokens. Empty means
// the bound is absent.
type SignConfig struct {
	Expires   string `mapstructure:"expires"`
	NotBefore string `mapstructure:"not_before"`
}

// DefaultDir is $HOME/.wascap, or .wascap when there is no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wascap"
	}
	return filepath.Join(home, ".wascap")
}

// Load reads configuration. When path is empty, config.yaml is looked up
// in DefaultDir and the working directory, and a missing file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	// Set default values
	v.SetDefault("keys.dir", filepath.Join(DefaultDir(), "keys"))
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("sign.expires", "")
	v.SetDefault("sign.not_before", "")

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, err := cfg.Sign.ExpiresIn(); err != nil {
		return nil, err
	}
	if _, err := cfg.Sign.NotBeforeIn(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpiresIn returns the default token lifetime; zero means no expiry.
func (s SignConfig) ExpiresIn() (time.Duration, error) {
	return optionalDuration("sign.expires", s.Expires)
}

// NotBeforeIn returns the default delay before a token becomes usable.
func (s SignConfig) NotBeforeIn() (time.Duration, error) {
	return optionalDuration("sign.not_before", s.NotBefore)
}

func optionalDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := ParseFlexibleDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ParseFlexibleDuration parses Go durations plus whole days ("30d") and
// weeks ("2w").
func ParseFlexibleDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	switch unit {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit in %q", s)
	}
}
