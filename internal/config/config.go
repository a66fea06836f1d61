// Package config loads server settings from an optional YAML file and the
// environment. Environment variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mkamal-dev/portfolio/internal/mail"
	"gopkg.in/yaml.v3"
)

const (
	LedgerSQL    = "sql"
	LedgerRedis  = "redis"
	LedgerMemory = "memory"

	ModeDebug   = "debug"
	ModeRelease = "release"
)

type Config struct {
	Port           string        `yaml:"port"`
	Mode           string        `yaml:"mode"`
	DatabaseURL    string        `yaml:"database_url"`
	LedgerBackend  string        `yaml:"ledger_backend"`
	Redis          RedisConfig   `yaml:"redis"`
	Admin          AdminConfig   `yaml:"admin"`
	Mail           mail.Config   `yaml:"mail"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateLimit      RateConfig    `yaml:"rate_limit"`
	VisitRateLimit RateConfig    `yaml:"visit_rate_limit"` // beacons, one per page load
	TrackTimeout   time.Duration `yaml:"track_timeout"`
	SecureCookies  bool          `yaml:"secure_cookies"`
	TemplatesGlob  string        `yaml:"templates_glob"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type AdminConfig struct {
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		Mode:           ModeDebug,
		DatabaseURL:    "portfolio.db",
		LedgerBackend:  LedgerSQL,
		Redis:          RedisConfig{Addr: "localhost:6379", Prefix: "analytics:visitors"},
		Admin:          AdminConfig{SessionTTL: 24 * time.Hour},
		Mail:           mail.Config{Provider: "smtp", SMTPHost: "smtp.gmail.com", SMTPPort: "587"},
		RateLimit:      RateConfig{RPS: 0.2, Burst: 5},
		VisitRateLimit: RateConfig{RPS: 1, Burst: 30},
		TrackTimeout:   5 * time.Second,
		TemplatesGlob:  "templates/*",
	}
}

// Load reads path (skipped when empty or missing) and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("GIN_MODE", &c.Mode)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LEDGER_BACKEND", &c.LedgerBackend)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	str("ADMIN_USERNAME", &c.Admin.Username)
	str("ADMIN_PASSWORD", &c.Admin.Password)
	str("SESSION_SECRET", &c.Admin.SessionSecret)
	str("MAIL_PROVIDER", &c.Mail.Provider)
	str("MAIL_FROM", &c.Mail.From)
	str("MAIL_FROM_NAME", &c.Mail.FromName)
	str("TO_EMAIL", &c.Mail.To)
	str("SMTP_HOST", &c.Mail.SMTPHost)
	str("SMTP_PORT", &c.Mail.SMTPPort)
	str("SMTP_USER", &c.Mail.SMTPUser)
	str("SMTP_PASS", &c.Mail.SMTPPass)
	str("RESEND_API_KEY", &c.Mail.ResendAPIKey)
	str("TEMPLATES_GLOB", &c.TemplatesGlob)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	var err error
	if v := os.Getenv("REDIS_DB"); v != "" {
		if c.Redis.DB, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if c.RateLimit.RPS, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if c.RateLimit.Burst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_VISIT_RPS"); v != "" {
		if c.VisitRateLimit.RPS, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("RATE_LIMIT_VISIT_RPS: %w", err)
		}
	}
	if v := os.Getenv("RATE_LIMIT_VISIT_BURST"); v != "" {
		if c.VisitRateLimit.Burst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("RATE_LIMIT_VISIT_BURST: %w", err)
		}
	}
	if v := os.Getenv("TRACK_TIMEOUT"); v != "" {
		if c.TrackTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("TRACK_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if c.Admin.SessionTTL, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("SESSION_TTL: %w", err)
		}
	}
	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		if c.SecureCookies, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("SECURE_COOKIES: %w", err)
		}
	}
	return nil
}

// Validate fills development defaults in debug mode and rejects release
// configurations that would run with them.
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerSQL, LedgerRedis, LedgerMemory:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.LedgerBackend)
	}
	// A non-positive timeout would expire every Record before it starts.
	if c.TrackTimeout <= 0 {
		return fmt.Errorf("track timeout must be positive, got %s", c.TrackTimeout)
	}

	if c.Mode == ModeRelease {
		if c.Admin.Username == "" || c.Admin.Password == "" {
			return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD are required in release mode")
		}
		if c.Admin.SessionSecret == "" {
			return errors.New("SESSION_SECRET is required in release mode")
		}
		return nil
	}

	// Default credentials for development
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.Password == "" {
		c.Admin.Password = "admin123"
	}
	return nil
}

// UsingDefaultCredentials reports whether the development login is active.
func (c *Config) UsingDefaultCredentials() bool {
	return c.Admin.Username == "admin" && c.Admin.Password == "admin123"
}
