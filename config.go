package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/wrenhollow/authcore/audit"
	"github.com/wrenhollow/authcore/breach"
	"github.com/wrenhollow/authcore/password"
	"github.com/wrenhollow/authcore/verify"
)

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	// Lifetime is the fixed expiry window for full sessions.
	Lifetime time.Duration
}

// ResendConfig bounds how often a pending verification may be re-issued.
type ResendConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

// BreachConfig controls the breached-password check.
type BreachConfig struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
}

// PolicyConfig is the password policy applied before hashing.
type PolicyConfig struct {
	MinLength int
	MaxLength int
}

// Config is the full engine configuration. defaultConfig is the baseline;
// Build validates whatever the caller ends up with.
type Config struct {
	// TokenSecret keys the HMAC over signed carrier tokens. At least 32
	// bytes.
	TokenSecret []byte

	// VerifiedTokenTTL bounds the short-lived token minted after a
	// successful code check.
	VerifiedTokenTTL time.Duration

	Password password.Config
	Verify   verify.Config
	Session  SessionConfig
	Resend   ResendConfig
	Audit    audit.Config
	Breach   BreachConfig
	Policy   PolicyConfig
}

func defaultConfig() Config {
	return Config{
		VerifiedTokenTTL: 10 * time.Minute,
		Password:         password.DefaultConfig(),
		Verify: verify.Config{
			CodeLength:  verify.DefaultCodeLength,
			TTL:         verify.DefaultTTL,
			MaxAttempts: verify.DefaultMaxAttempts,
		},
		Session: SessionConfig{
			Lifetime: 30 * 24 * time.Hour,
		},
		Resend: ResendConfig{
			Enabled: true,
			Max:     3,
			Window:  10 * time.Minute,
		},
		Audit: audit.Config{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Breach: BreachConfig{
			Enabled:  false,
			Endpoint: breach.DefaultEndpoint,
			Timeout:  breach.DefaultTimeout,
		},
		Policy: PolicyConfig{
			MinLength: 8,
			MaxLength: 512,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.TokenSecret = append([]byte(nil), cfg.TokenSecret...)
	return out
}

func validateConfig(cfg Config) error {
	if len(cfg.TokenSecret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if cfg.VerifiedTokenTTL <= 0 {
		return errors.New("verified token ttl must be positive")
	}
	if cfg.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if cfg.Resend.Enabled && (cfg.Resend.Max < 1 || cfg.Resend.Window <= 0) {
		return errors.New("resend limiter requires a positive budget and window")
	}
	if cfg.Policy.MinLength < 1 || cfg.Policy.MaxLength < cfg.Policy.MinLength {
		return errors.New("password policy bounds are inconsistent")
	}
	if cfg.Breach.Enabled && cfg.Breach.Timeout <= 0 {
		return errors.New("breach check requires a positive timeout")
	}
	return nil
}

// envConfig is the flat environment surface. Nested durations and sizes
// map onto Config in FromEnv.
type envConfig struct {
	TokenSecret      string        `env:"AUTHCORE_TOKEN_SECRET,notEmpty"`
	VerifiedTokenTTL time.Duration `env:"AUTHCORE_VERIFIED_TOKEN_TTL" envDefault:"10m"`

	CodeLength  int           `env:"AUTHCORE_CODE_LENGTH" envDefault:"6"`
	CodeTTL     time.Duration `env:"AUTHCORE_CODE_TTL" envDefault:"10m"`
	MaxAttempts int           `env:"AUTHCORE_CODE_MAX_ATTEMPTS" envDefault:"5"`

	SessionLifetime time.Duration `env:"AUTHCORE_SESSION_LIFETIME" envDefault:"720h"`

	ResendEnabled bool          `env:"AUTHCORE_RESEND_ENABLED" envDefault:"true"`
	ResendMax     int           `env:"AUTHCORE_RESEND_MAX" envDefault:"3"`
	ResendWindow  time.Duration `env:"AUTHCORE_RESEND_WINDOW" envDefault:"10m"`

	AuditEnabled bool `env:"AUTHCORE_AUDIT_ENABLED" envDefault:"false"`
	AuditBuffer  int  `env:"AUTHCORE_AUDIT_BUFFER" envDefault:"256"`

	BreachEnabled  bool          `env:"AUTHCORE_BREACH_ENABLED" envDefault:"false"`
	BreachEndpoint string        `env:"AUTHCORE_BREACH_ENDPOINT"`
	BreachTimeout  time.Duration `env:"AUTHCORE_BREACH_TIMEOUT" envDefault:"1s"`

	PasswordMinLength int `env:"AUTHCORE_PASSWORD_MIN_LENGTH" envDefault:"8"`
}

// FromEnv loads Config from the process environment, reading a .env file
// first when one exists. Unset variables keep their defaults.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.TokenSecret = []byte(raw.TokenSecret)
	cfg.VerifiedTokenTTL = raw.VerifiedTokenTTL
	cfg.Verify.CodeLength = raw.CodeLength
	cfg.Verify.TTL = raw.CodeTTL
	cfg.Verify.MaxAttempts = raw.MaxAttempts
	cfg.Session.Lifetime = raw.SessionLifetime
	cfg.Resend.Enabled = raw.ResendEnabled
	cfg.Resend.Max = raw.ResendMax
	cfg.Resend.Window = raw.ResendWindow
	cfg.Audit.Enabled = raw.AuditEnabled
	cfg.Audit.BufferSize = raw.AuditBuffer
	cfg.Breach.Enabled = raw.BreachEnabled
	if raw.BreachEndpoint != "" {
		cfg.Breach.Endpoint = raw.BreachEndpoint
	}
	cfg.Breach.Timeout = raw.BreachTimeout
	cfg.Policy.MinLength = raw.PasswordMinLength

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
