package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration required by the console API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	Console ConsoleConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV"`
	Port int    `env:"APP_PORT"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`
}

type RedisConfig struct {
	Host string `env:"REDIS_HOST"`
	Port int    `env:"REDIS_PORT"`
}

type AuthConfig struct {
	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`
	// Zero TTLs get defaults in Validate.
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TTL"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TTL"`

	// DevLogin enables token issuance without a credential check.
	// Refused in production.
	DevLogin bool `env:"AUTH_DEV_LOGIN"`
}

type TwilioConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	// StatusCallbackURL is the public URL Twilio signs status callbacks against.
	StatusCallbackURL string `env:"TWILIO_STATUS_CALLBACK_URL"`
}

// ConsoleConfig holds the tunables of the call console engines.
type ConsoleConfig struct {
	AutosaveDebounce time.Duration `env:"CONSOLE_AUTOSAVE_DEBOUNCE" envDefault:"2s"`
	PollInterval     time.Duration `env:"CONSOLE_POLL_INTERVAL" envDefault:"5s"`
	TailLimit        int           `env:"CONSOLE_TAIL_LIMIT" envDefault:"200"`

	// IPLookupURL is queried for the caller address when a request carries none.
	// Empty disables the lookup.
	IPLookupURL     string        `env:"CONSOLE_IP_LOOKUP_URL"`
	IPLookupTimeout time.Duration `env:"CONSOLE_IP_LOOKUP_TIMEOUT" envDefault:"1500ms"`

	// ActiveLeaseTTL bounds how long a crashed console can block its operator.
	ActiveLeaseTTL time.Duration `env:"CONSOLE_ACTIVE_LEASE_TTL" envDefault:"4h"`

	AuditQueueSize int `env:"CONSOLE_AUDIT_QUEUE" envDefault:"256"`
}

// Load parses the environment and validates the result. Required values are
// reported together by Validate rather than one at a time.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config env: %w", err)
	}
	c.trim()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) trim() {
	for _, p := range []*string{
		&c.App.Env,
		&c.DB.Host, &c.DB.User, &c.DB.Name, &c.DB.SSLMode,
		&c.Redis.Host,
		&c.Auth.JWTIssuer, &c.Auth.JWTAudience,
		&c.Twilio.AccountSID, &c.Twilio.StatusCallbackURL,
		&c.Console.IPLookupURL,
	} {
		*p = strings.TrimSpace(*p)
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			// Allowed values are enforced below.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	if c.IsProduction() && c.Auth.DevLogin {
		errs = append(errs, errors.New("AUTH_DEV_LOGIN is not allowed in production"))
	}

	errs = append(errs, c.Console.validate()...)

	return joinErrors(errs)
}

func (c *ConsoleConfig) validate() []error {
	var errs []error
	if c.AutosaveDebounce <= 0 {
		c.AutosaveDebounce = 2 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.TailLimit <= 0 {
		c.TailLimit = 200
	}
	if c.IPLookupTimeout <= 0 {
		c.IPLookupTimeout = 1500 * time.Millisecond
	}
	if c.ActiveLeaseTTL <= 0 {
		c.ActiveLeaseTTL = 4 * time.Hour
	}
	if c.AuditQueueSize <= 0 {
		c.AuditQueueSize = 256
	}
	if c.TailLimit > 1000 {
		errs = append(errs, fmt.Errorf("CONSOLE_TAIL_LIMIT must be <= 1000, got %d", c.TailLimit))
	}
	if c.IPLookupURL != "" && !strings.HasPrefix(c.IPLookupURL, "https://") && !strings.HasPrefix(c.IPLookupURL, "http://") {
		errs = append(errs, fmt.Errorf("CONSOLE_IP_LOOKUP_URL must be an http(s) URL, got %q", c.IPLookupURL))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
