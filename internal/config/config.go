// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	Session      SessionConfig
	SMTP         SMTPConfig
	Registration RegistrationConfig
	Redis        RedisConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SMTPConfig configures outbound mail. An empty Host disables SMTP delivery.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether mail should be delivered over SMTP.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// RegistrationConfig holds the knobs of the code-based registration flow.
type RegistrationConfig struct { //nolint:govet // fieldalignment not critical
	CodeTTL         time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration

	// bcrypt cost factors; lowered in tests
	CodeHashCost     int
	PasswordHashCost int

	CleanupInterval time.Duration // 0 disables the sweeper
	Retention       time.Duration

	StartLimit  int // starts allowed per key and window, 0 disables
	StartWindow time.Duration
}

// RedisConfig configures the optional Redis connection used for rate limiting.
type RedisConfig struct {
	URL string
}

// DefaultRegistration returns the registration settings used when nothing is configured.
func DefaultRegistration() RegistrationConfig {
	return RegistrationConfig{
		CodeTTL:          10 * time.Minute,
		MaxAttempts:      5,
		LockoutDuration:  15 * time.Minute,
		CodeHashCost:     10,
		PasswordHashCost: 12,
		CleanupInterval:  time.Hour,
		Retention:        24 * time.Hour,
		StartLimit:       5,
		StartWindow:      15 * time.Minute,
	}
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Registration: RegistrationConfig{
			CodeTTL:          cmd.Duration("registration-code-ttl"),
			MaxAttempts:      int(cmd.Int("registration-max-attempts")),
			LockoutDuration:  cmd.Duration("registration-lockout"),
			CodeHashCost:     int(cmd.Int("registration-code-cost")),
			PasswordHashCost: int(cmd.Int("registration-password-cost")),
			CleanupInterval:  cmd.Duration("registration-cleanup-interval"),
			Retention:        cmd.Duration("registration-retention"),
			StartLimit:       int(cmd.Int("registration-start-limit")),
			StartWindow:      cmd.Duration("registration-start-window"),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyRegistrationDefaults(&cfg.Registration)

	return cfg
}

// applyRegistrationDefaults replaces unusable values with the defaults.
func applyRegistrationDefaults(rc *RegistrationConfig) {
	def := DefaultRegistration()
	if rc.CodeTTL <= 0 {
		rc.CodeTTL = def.CodeTTL
	}
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = def.MaxAttempts
	}
	if rc.LockoutDuration <= 0 {
		rc.LockoutDuration = def.LockoutDuration
	}
	if rc.CodeHashCost <= 0 {
		rc.CodeHashCost = def.CodeHashCost
	}
	if rc.PasswordHashCost <= 0 {
		rc.PasswordHashCost = def.PasswordHashCost
	}
	if rc.Retention <= 0 {
		rc.Retention = def.Retention
	}
	if rc.StartWindow <= 0 {
		rc.StartWindow = def.StartWindow
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// IsSecure reports whether cookies should carry the Secure flag.
func (c *Config) IsSecure() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	def := DefaultRegistration()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (codes are only logged when empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Marketplace",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// Registration flags
		&cli.DurationFlag{
			Name:    "registration-code-ttl",
			Value:   def.CodeTTL,
			Usage:   "How long a confirmation code stays valid",
			Sources: source("REGISTRATION_CODE_TTL", "registration.code_ttl"),
		},
		&cli.IntFlag{
			Name:    "registration-max-attempts",
			Value:   5,
			Usage:   "Failed verifications allowed before lockout",
			Sources: source("REGISTRATION_MAX_ATTEMPTS", "registration.max_attempts"),
		},
		&cli.DurationFlag{
			Name:    "registration-lockout",
			Value:   def.LockoutDuration,
			Usage:   "Lockout duration after exhausting attempts",
			Sources: source("REGISTRATION_LOCKOUT", "registration.lockout"),
		},
		&cli.IntFlag{
			Name:    "registration-code-cost",
			Value:   10,
			Usage:   "bcrypt cost for confirmation codes",
			Sources: source("REGISTRATION_CODE_COST", "registration.code_cost"),
		},
		&cli.IntFlag{
			Name:    "registration-password-cost",
			Value:   12,
			Usage:   "bcrypt cost for passwords",
			Sources: source("REGISTRATION_PASSWORD_COST", "registration.password_cost"),
		},
		&cli.DurationFlag{
			Name:    "registration-cleanup-interval",
			Value:   def.CleanupInterval,
			Usage:   "Interval of the stale attempt sweeper (0 disables it)",
			Sources: source("REGISTRATION_CLEANUP_INTERVAL", "registration.cleanup_interval"),
		},
		&cli.DurationFlag{
			Name:    "registration-retention",
			Value:   def.Retention,
			Usage:   "How long expired attempts are kept before the sweeper deletes them",
			Sources: source("REGISTRATION_RETENTION", "registration.retention"),
		},
		&cli.IntFlag{
			Name:    "registration-start-limit",
			Value:   5,
			Usage:   "Registration starts allowed per email and IP within the window (0 disables)",
			Sources: source("REGISTRATION_START_LIMIT", "registration.start_limit"),
		},
		&cli.DurationFlag{
			Name:    "registration-start-window",
			Value:   def.StartWindow,
			Usage:   "Window for the registration start limit",
			Sources: source("REGISTRATION_START_WINDOW", "registration.start_window"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for rate limiting (disabled when empty)",
			Sources: source("REDIS_URL", "redis.url"),
		},
	}
}
