package authcore

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taskgrid/authcore/jwt"
	"github.com/taskgrid/authcore/password"
	"github.com/taskgrid/authcore/totp"
)

const defaultResetTTL = time.Hour

// Config aggregates the tunables of every component. Zero values are filled
// with production defaults by the Builder.
type Config struct {
	JWT      jwt.Config
	Password password.Params
	Breach   password.BreachConfig
	TOTP     totp.Config
	// ResetTTL bounds the validity of password-reset tokens.
	ResetTTL time.Duration
	Audit    AuditConfig
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events under backpressure instead of blocking the
	// request path; drops are counted.
	DropIfFull bool
}

// envConfig is the environment surface recognized by ConfigFromEnv.
type envConfig struct {
	AccessTTLMinutes int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTTLDays   int           `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"7"`
	PrivateKeyPath   string        `env:"JWT_PRIVATE_KEY_PATH"`
	PublicKeyPath    string        `env:"JWT_PUBLIC_KEY_PATH"`
	Algorithm        string        `env:"JWT_ALGORITHM" envDefault:"RS256"`
	Issuer           string        `env:"JWT_ISSUER" envDefault:"authcore"`
	BreachEndpoint   string        `env:"BREACH_CHECK_ENDPOINT"`
	BreachAPIKey     string        `env:"BREACH_CHECK_API_KEY"`
	TOTPIssuer       string        `env:"TOTP_ISSUER" envDefault:"authcore"`
	ResetTTL         time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	AuditEnabled     bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditBufferSize  int           `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
}

// ConfigFromEnv builds a Config from the process environment, reading the
// signing keys from the configured paths. An absent breach endpoint leaves
// the compromise check disabled.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := Config{
		JWT: jwt.Config{
			Algorithm:  jwt.Algorithm(ec.Algorithm),
			AccessTTL:  time.Duration(ec.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(ec.RefreshTTLDays) * 24 * time.Hour,
			Issuer:     ec.Issuer,
		},
		Password: password.DefaultParams(),
		Breach: password.BreachConfig{
			Endpoint: ec.BreachEndpoint,
			APIKey:   ec.BreachAPIKey,
		},
		TOTP:     totp.Config{Issuer: ec.TOTPIssuer},
		ResetTTL: ec.ResetTTL,
		Audit: AuditConfig{
			Enabled:    ec.AuditEnabled,
			BufferSize: ec.AuditBufferSize,
			DropIfFull: true,
		},
	}

	if ec.PrivateKeyPath != "" {
		pem, err := os.ReadFile(ec.PrivateKeyPath)
		if err != nil {
			return Config{}, fmt.Errorf("read signing key: %w", err)
		}
		cfg.JWT.PrivateKeyPEM = pem
	}
	if ec.PublicKeyPath != "" {
		pem, err := os.ReadFile(ec.PublicKeyPath)
		if err != nil {
			return Config{}, fmt.Errorf("read verification key: %w", err)
		}
		cfg.JWT.PublicKeyPEM = pem
	}

	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Password == (password.Params{}) {
		c.Password = password.DefaultParams()
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = defaultResetTTL
	}
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTTL <= 0 {
		c.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = 1024
	}
	return c
}
