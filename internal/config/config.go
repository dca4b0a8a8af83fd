package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret  string `mapstructure:"JWT_SECRET"`
	JWTExpires string `mapstructure:"JWT_EXPIRES"`

	ClientURL         string `mapstructure:"CLIENT_URL"`
	ResetTokenMinutes int    `mapstructure:"RESET_TOKEN_MINUTES"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPass     string `mapstructure:"SMTP_PASS"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	SupportEmail string `mapstructure:"SUPPORT_EMAIL"`

	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthLimitMax    int           `mapstructure:"AUTH_LIMIT_MAX"`
	AuthLimitWindow time.Duration `mapstructure:"AUTH_LIMIT_WINDOW"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("JWT_EXPIRES", "24h")
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("RESET_TOKEN_MINUTES", 10)
	v.SetDefault("MAIL_FROM", "Sistema Clínico <no-reply@clinica.local>")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AUTH_LIMIT_MAX", 5)
	v.SetDefault("AUTH_LIMIT_WINDOW", 10*time.Minute)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"CORS_ORIGINS", "JWT_SECRET", "JWT_EXPIRES", "CLIENT_URL",
		"RESET_TOKEN_MINUTES", "SMTP_HOST", "SMTP_PORT", "SMTP_USER",
		"SMTP_PASS", "MAIL_FROM", "SUPPORT_EMAIL", "RATE_LIMIT_RPS",
		"RATE_LIMIT_BURST", "AUTH_LIMIT_MAX", "AUTH_LIMIT_WINDOW",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
		log.Println("WARNING: JWT_SECRET not set, using an insecure development secret.")
		log.Println("WARNING: Set ENV=production and JWT_SECRET before deploying.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL parses JWT_EXPIRES, falling back to 24h on malformed input.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTExpires)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ResetTokenTTL returns the password-reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	m := c.ResetTokenMinutes
	if m <= 0 {
		m = 10
	}
	return time.Duration(m) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// a real JWT secret is required, and SMTP must be configured in production so
// password-reset mail can actually be delivered.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development (ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required in production")
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		return fmt.Errorf("SMTP_PORT is required when SMTP_HOST is set")
	}
	return nil
}
