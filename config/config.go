// Package config resolves settings through an explicit, ordered provider
// chain: runtime overrides, then WORKLOG_* environment variables, then the
// YAML config file, then built-in defaults. The first provider that knows a
// key wins.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/worklog-cli/worklog/internal/validation"
	"github.com/worklog-cli/worklog/transport"
)

// Config keys.
const (
	KeyAPIToken           = "api_token"
	KeyUsername           = "username"
	KeyPassword           = "password"
	KeyBaseURL            = "base_url"
	KeyTimezone           = "timezone"
	KeyDatetimeFormat     = "datetime_format"
	KeyTimeFormat         = "time_format"
	KeyDayFirst           = "day_first"
	KeyYearFirst          = "year_first"
	KeyDefaultWorkspaceID = "default_workspace_id"
	KeyContinueCreates    = "continue_creates"
	KeyLogFile            = "log_file"
	KeyLogLevel           = "log_level"
)

const envPrefix = "WORKLOG"

// DefaultFileName is the config file looked up in the home directory.
const DefaultFileName = ".worklog.yaml"

var defaults = map[string]any{
	KeyBaseURL:         transport.DefaultBaseURL,
	KeyTimezone:        "Local",
	KeyDatetimeFormat:  "2006-01-02 15:04:05",
	KeyTimeFormat:      "15:04:05",
	KeyDayFirst:        false,
	KeyYearFirst:       false,
	KeyContinueCreates: true,
	KeyLogLevel:        "warn",
}

// Provider answers a single configuration lookup. Providers are consulted
// in priority order and the first hit wins.
type Provider interface {
	Name() string
	Lookup(key string) (any, bool)
}

type mapProvider struct {
	name   string
	values map[string]any
}

func (p *mapProvider) Name() string { return p.name }

func (p *mapProvider) Lookup(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

type viperProvider struct {
	name string
	v    *viper.Viper
}

func (p *viperProvider) Name() string { return p.name }

func (p *viperProvider) Lookup(key string) (any, bool) {
	if !p.v.IsSet(key) {
		return nil, false
	}
	return p.v.Get(key), true
}

// Config is the resolved provider chain plus the runtime override store.
type Config struct {
	mu        sync.RWMutex
	path      string
	overrides map[string]any
	file      *viper.Viper
	providers []Provider
}

// DefaultPath is the config file location in the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DefaultFileName), nil
}

// Load builds the provider chain. An empty path means the default location;
// a missing config file is not an error, the other providers still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.AutomaticEnv()

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	overrides := map[string]any{}
	c := &Config{
		path:      path,
		overrides: overrides,
		file:      file,
		providers: []Provider{
			&mapProvider{name: "overrides", values: overrides},
			&viperProvider{name: "env", v: env},
			&viperProvider{name: "file", v: file},
			&mapProvider{name: "defaults", values: defaults},
		},
	}
	return c, nil
}

// Path is the config file location backing the chain.
func (c *Config) Path() string { return c.path }

// Lookup walks the provider chain.
func (c *Config) Lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.providers {
		if v, ok := p.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// String resolves key as a string, empty when unset.
func (c *Config) String(key string) string {
	v, ok := c.Lookup(key)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Bool resolves key as a bool, false when unset or unparsable.
func (c *Config) Bool(key string) bool {
	v, ok := c.Lookup(key)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	case int:
		return t != 0
	}
	return false
}

// Int64 resolves key as an int64, zero when unset or unparsable.
func (c *Config) Int64(key string) int64 {
	v, ok := c.Lookup(key)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// Set stores a runtime override, the highest-priority provider. Overrides
// are included when the config is saved.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[key] = value
}

// DatetimeFormat is the display layout for timestamps.
func (c *Config) DatetimeFormat() string {
	return c.String(KeyDatetimeFormat)
}

// TimeFormat is the display layout for times of day.
func (c *Config) TimeFormat() string {
	return c.String(KeyTimeFormat)
}

// Timezone resolves the configured zone, falling back to the local one.
func (c *Config) Timezone() *time.Location {
	name := c.String(KeyTimezone)
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks the resolved values that can be checked offline.
func (c *Config) Validate() error {
	if err := validation.Timezone(c.String(KeyTimezone)); err != nil {
		return err
	}
	if err := validation.LogLevel(c.String(KeyLogLevel)); err != nil {
		return err
	}
	if err := validation.DatetimeFormat(c.String(KeyDatetimeFormat)); err != nil {
		return err
	}
	if _, set := c.Lookup(KeyDefaultWorkspaceID); set {
		if err := validation.WorkspaceID(c.Int64(KeyDefaultWorkspaceID)); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the file-backed settings merged with the runtime overrides
// back to the YAML file, under an exclusive cross-process lock.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := map[string]any{}
	for k, v := range c.file.AllSettings() {
		merged[k] = v
	}
	for k, v := range c.overrides {
		merged[k] = v
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking config file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	for k, v := range c.overrides {
		c.file.Set(k, v)
	}
	return nil
}
