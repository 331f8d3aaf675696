// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// Prefix is prepended to every variable name, e.g. CALCULATOR_HTTP_ADDR.
const Prefix = "CALCULATOR"

// Config is filled by envconfig from CALCULATOR_* variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	HistorySize   int           `envconfig:"HISTORY_SIZE" default:"10"`
	ErrorRecovery time.Duration `envconfig:"ERROR_RECOVERY" default:"2s"`
	Locale        string        `envconfig:"LOCALE" default:"en"`
	Sound         bool          `envconfig:"SOUND" default:"true"`

	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionSweep time.Duration `envconfig:"SESSION_SWEEP" default:"1m"`

	OTLPTraces  bool `envconfig:"OTLP_TRACES" default:"false"`
	OTLPMetrics bool `envconfig:"OTLP_METRICS" default:"false"`
	OTLPLogs    bool `envconfig:"OTLP_LOGS" default:"false"`
}

// Load reads .env files when present, without overriding variables already
// set in the process environment, then processes CALCULATOR_* variables.
func Load(dotenv ...string) (Config, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	var errs []error

	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history size must be positive, got %d", c.HistorySize))
	}
	if c.ErrorRecovery <= 0 {
		errs = append(errs, fmt.Errorf("error recovery delay must be positive, got %s", c.ErrorRecovery))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("session ttl must not be negative, got %s", c.SessionTTL))
	}
	if _, err := c.LocaleTag(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LocaleTag parses Locale as a BCP 47 tag.
func (c Config) LocaleTag() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	return tag, nil
}

func loadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load .env: %w", err)
}
