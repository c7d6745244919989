package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/vibranium-fest/pass-server-go/internal/qr"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Shared secret for verifying the identity provider's session JWTs.
	// This service never issues tokens itself.
	IdentityJWTSecret string `env:"IDENTITY_JWT_SECRET"`

	// Email notification microservice. Empty disables pass emails.
	MailerURL string `env:"MAILER_URL" envDefault:""`

	TicketBackgroundPath string  `env:"TICKET_BACKGROUND_PATH" envDefault:"assets/ticket-background.png"`
	TicketFontPath       string  `env:"TICKET_FONT_PATH" envDefault:""`
	TicketFontPoints     float64 `env:"TICKET_FONT_POINTS" envDefault:"36"`

	QRPixelSize  int    `env:"QR_PIXEL_SIZE" envDefault:"280"`
	QRMargin     int    `env:"QR_MARGIN" envDefault:"2"`
	QRIssueLevel string `env:"QR_ISSUE_LEVEL" envDefault:"H"`

	ScanDedupeWindowMS     int `env:"SCAN_DEDUPE_WINDOW_MS" envDefault:"2000"`
	ScannerSessionTTLHours int `env:"SCANNER_SESSION_TTL_HOURS" envDefault:"12"`

	RateLimitPerMin int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ScanDedupeWindow() time.Duration {
	return time.Duration(c.ScanDedupeWindowMS) * time.Millisecond
}

func (c *Config) ScannerSessionTTL() time.Duration {
	return time.Duration(c.ScannerSessionTTLHours) * time.Hour
}

// IssueLevel is the error-correction level for issued passes. High
// correction tolerates partial symbol damage and glare at the door.
func (c *Config) IssueLevel() qr.Level {
	if level, ok := qr.ParseLevel(c.QRIssueLevel); ok {
		return level
	}
	return qr.LevelH
}

func (c *Config) Validate(isProduction bool) error {
	if _, ok := qr.ParseLevel(c.QRIssueLevel); !ok {
		return fmt.Errorf("QR_ISSUE_LEVEL must be one of L, M, Q, H (got %q)", c.QRIssueLevel)
	}
	if c.ScanDedupeWindowMS <= 0 {
		return fmt.Errorf("SCAN_DEDUPE_WINDOW_MS must be positive")
	}

	if isProduction {
		if err := validateSecret("IDENTITY_JWT_SECRET", c.IdentityJWTSecret); err != nil {
			return err
		}
		if c.MailerURL == "" {
			log.Warn().Msg("MAILER_URL is empty in production: pass emails disabled")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	// Local development convenience; real deployments set env directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
