// Package config loads gamelog settings from defaults, an optional config
// file, GAMELOG_* environment variables, and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. GAMELOG_ADDR
// or GAMELOG_LOG_LEVEL.
const EnvPrefix = "GAMELOG"

// Config is the effective configuration.
type Config struct {
	// Server side.
	Addr           string   `mapstructure:"addr"`
	DBPath         string   `mapstructure:"db"`
	// CoversURL is a gocloud.dev blob URL. Empty means a covers directory
	// next to the database.
	CoversURL      string   `mapstructure:"covers_url"`
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LoginRateLimit int      `mapstructure:"login_rate_limit"`
	Username       string   `mapstructure:"username"`

	// Client side.
	Server    string `mapstructure:"server"`
	TokenFile string `mapstructure:"token_file"`

	Log Log `mapstructure:"log"`
}

// Log configures logging.
type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "gamelog.sqlite3")
	v.SetDefault("covers_url", "")
	v.SetDefault("public_url", "")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("login_rate_limit", 10)
	v.SetDefault("username", "admin")

	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("token_file", defaultTokenFile())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags binds each flag named in keys (flag name -> config key). Flags
// override every other source once set on the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("binding flag %s: no such flag", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads file (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// A single env var or flag may carry a comma-separated list.
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("login_rate_limit: must not be negative"))
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("allowed_origins: %q is not an http(s) origin", o))
		}
	}
	return errors.Join(errs...)
}

// CoversBucketURL returns CoversURL, or a file:// URL for a covers
// directory beside the database when it is unset.
func (c *Config) CoversBucketURL() (string, error) {
	if c.CoversURL != "" {
		return c.CoversURL, nil
	}
	dir, err := filepath.Abs(filepath.Join(filepath.Dir(c.DBPath), "covers"))
	if err != nil {
		return "", fmt.Errorf("resolving covers directory: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String(), nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gamelog-token"
	}
	return filepath.Join(dir, "gamelog", "token")
}

// ReadToken returns the token saved at path, or "" when none was saved.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteToken saves token at path, readable only by the current user. An
// empty token removes the file.
func WriteToken(path, token string) error {
	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing token file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
