// Package config loads postboard settings from defaults, an optional YAML
// file, POSTBOARD_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abelbrown/postboard/internal/store"
)

// EnvPrefix is prepended to every environment override, e.g. POSTBOARD_API_BASE_URL.
const EnvPrefix = "POSTBOARD"

// Config is the application configuration.
type Config struct {
	API   APIConfig   `mapstructure:"api"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// APIConfig holds remote data source settings.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	TotalPages        int           `mapstructure:"total_pages"`         // placeholder; the API reports none
	Timeout           time.Duration `mapstructure:"timeout"`             // 0 waits indefinitely
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables pacing
	SkipProbe         bool          `mapstructure:"skip_probe"`          // skip the network interface check
}

// StoreConfig holds local mirror settings.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" or "bolt"
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// DataDir returns ~/.postboard.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".postboard"
	}
	return filepath.Join(home, ".postboard")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://jsonplaceholder.typicode.com",
			TotalPages: 10,
		},
		Store: StoreConfig{
			Backend: store.BackendSQLite,
			Path:    filepath.Join(DataDir(), "mirror.db"),
		},
		Log: LogConfig{
			Level: "info",
			Dir:   filepath.Join(DataDir(), "logs"),
		},
	}
}

// New returns a viper instance seeded with defaults and env bindings.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.total_pages", d.API.TotalPages)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.skip_probe", d.API.SkipProbe)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadDotEnv loads POSTBOARD_* variables from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// BindFlags maps command-line flags onto config keys. Flags that were not
// set on the command line do not override lower layers.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %q", flag, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads path (or the default path when empty) into v and decodes it.
// A missing file is not an error; defaults and env still apply.
func Load(v *viper.Viper, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Log.Dir = expandHome(cfg.Log.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TotalPages < 1 {
		return fmt.Errorf("api.total_pages must be at least 1, got %d", c.API.TotalPages)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative, got %g", c.API.RequestsPerSecond)
	}
	switch c.Store.Backend {
	case store.BackendSQLite, store.BackendBolt:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", store.BackendSQLite, store.BackendBolt, c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// Save writes c to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("api.base_url", c.API.BaseURL)
	v.Set("api.total_pages", c.API.TotalPages)
	v.Set("api.timeout", c.API.Timeout.String())
	v.Set("api.requests_per_second", c.API.RequestsPerSecond)
	v.Set("api.skip_probe", c.API.SkipProbe)
	v.Set("store.backend", c.Store.Backend)
	v.Set("store.path", c.Store.Path)
	v.Set("log.level", c.Log.Level)
	v.Set("log.dir", c.Log.Dir)

	return v.WriteConfigAs(path)
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
