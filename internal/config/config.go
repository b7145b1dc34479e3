// Package config loads runtime settings.
//
// Sources, lowest precedence first: built-in defaults, an optional config
// file, a .env file in the working directory, the process environment, and
// finally command-line flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/logging"
)

// Storage backends for items.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds every setting the server and the CLI read.
type Config struct {
	Port     int    `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBPath         string `mapstructure:"DB_PATH"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	DataFile       string `mapstructure:"DATA_FILE"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	// Seeded credentials account; skipped unless email and password are set.
	DemoUsername string `mapstructure:"DEMO_USERNAME"`
	DemoEmail    string `mapstructure:"DEMO_EMAIL"`
	DemoPassword string `mapstructure:"DEMO_PASSWORD"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `mapstructure:"GITHUB_CALLBACK_URL"`
}

var defaults = map[string]any{
	"PORT":            8080,
	"ENV":             "dev",
	"LOG_LEVEL":       "info",
	"DB_PATH":         "data/manhwee.db",
	"STORAGE_BACKEND": BackendSQLite,
	"DATA_FILE":       "data/items.json",
	"SESSION_TTL":     "168h",
	"DEMO_USERNAME":   "demo",
}

// New returns a viper instance with defaults and environment binding set
// up. The CLI binds its flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{
		"JWT_SECRET", "DEMO_EMAIL", "DEMO_PASSWORD",
		"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
	} {
		_ = v.BindEnv(key)
	}
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), the optional config file and the
// environment into a Config. It does not validate.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.Env != "dev" && c.Env != "prod" {
		errs = append(errs, fmt.Errorf("ENV must be dev or prod, got %q", c.Env))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}

	switch c.StorageBackend {
	case BackendSQLite, BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			errs = append(errs, errors.New("DATA_FILE is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be one of %s, %s, %s; got %q",
			BackendSQLite, BackendFile, BackendMemory, c.StorageBackend))
	}

	if len(c.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", auth.MinSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GitHubEnabled reports whether OAuth client credentials are configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// DemoEnabled reports whether a demo account should be seeded.
func (c *Config) DemoEnabled() bool {
	return c.DemoEmail != "" && c.DemoPassword != ""
}
