// Package config loads runtime settings for the sentinel binary.
//
// Loading order:
//  1. A .env file is read with godotenv. It never overrides variables
//     already set in the environment, and a missing default .env is fine.
//  2. SENTINEL_* variables are decoded with envconfig.
//  3. The result is checked with go-playground/validator.
//
// Command-line flags are applied by the CLI after Load returns.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix.
const Prefix = "SENTINEL"

// DefaultEnvFile is read when no other file is named.
const DefaultEnvFile = ".env"

// Config is the process configuration.
type Config struct {
	// DB is the path of the SQLite database.
	DB string `envconfig:"DB" default:"sentinel.db" validate:"required"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	// ShoutrrrURLs are notification service URLs (comma separated in the
	// environment). Empty means outbox items are only rendered as links.
	ShoutrrrURLs []string `envconfig:"SHOUTRRR_URLS" validate:"dive,required,contains=://"`

	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s" validate:"gt=0"`
}

// ErrorType categorizes configuration failures.
type ErrorType string

const (
	ErrEnvFile    ErrorType = "ENV_FILE"
	ErrParsing    ErrorType = "PARSING_FAILED"
	ErrValidation ErrorType = "VALIDATION_FAILED"
)

// ConfigError is returned by Load.
type ConfigError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a ConfigError of type t.
func IsConfigError(err error, t ErrorType) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Type == t
}

// Load reads envFile (DefaultEnvFile when empty) and the environment.
// A named file that does not exist is an error; a missing default is not.
func Load(envFile string) (*Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Type: ErrEnvFile, Message: "failed to read " + path, Err: err}
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints. The CLI calls it again after
// applying flag overrides.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler builds the slog handler for w from LogLevel and LogFormat.
func (c *Config) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
