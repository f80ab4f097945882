package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	LogFile        string        `env:"LOG_FILE" envDefault:"logs/server.log"`
	LogMaxSizeMB   int           `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups  int           `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	NoEmailVerify  bool          `env:"NO_EMAIL_VERIFY"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"10m"`
	Tokens         TokenConfig
	Email          EmailConfig
	Google         GoogleConfig
}

type TokenConfig struct {
	AccessSecret  string        `env:"AT_SECRET"`
	AccessTTL     time.Duration `env:"EXP_AT" envDefault:"15m"`
	RefreshSecret string        `env:"RT_SECRET"`
	RefreshTTL    time.Duration `env:"EXP_RT" envDefault:"168h"`
	ResetSecret   string        `env:"RESET_SECRET"`
	ResetTTL      time.Duration `env:"EXP_RESET" envDefault:"15m"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_SERVER_HOST"`
	Port     int    `env:"EMAIL_SERVER_PORT" envDefault:"587"`
	Username string `env:"EMAIL_SERVER_USER"`
	Password string `env:"EMAIL_SERVER_PASSWORD"`
	From     string `env:"EMAIL_FROM"`
	Secure   bool   `env:"EMAIL_SERVER_SECURE"`
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	AuthURL      string `env:"GOOGLE_AUTH_URL"`
	TokenURL     string `env:"GOOGLE_TOKEN_URL"`
	UserInfoURL  string `env:"GOOGLE_USERINFO_URL"`
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Values copied from .env files often keep their quotes.
	for _, v := range []*string{
		&cfg.DatabaseURL, &cfg.RedisURL, &cfg.FrontendURL,
		&cfg.Email.Host, &cfg.Email.Username, &cfg.Email.Password, &cfg.Email.From,
		&cfg.Tokens.AccessSecret, &cfg.Tokens.RefreshSecret, &cfg.Tokens.ResetSecret,
		&cfg.Google.ClientID, &cfg.Google.ClientSecret,
	} {
		*v = clean(*v)
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.TrustedProxies = parseList(cfg.TrustedProxies)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Tokens.AccessSecret == "" || cfg.Tokens.RefreshSecret == "" || cfg.Tokens.ResetSecret == "" {
		return Config{}, fmt.Errorf("AT_SECRET, RT_SECRET and RESET_SECRET are required")
	}
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.FrontendURL + "/sign-in"
	}

	return cfg, nil
}

func clean(val string) string {
	return strings.Trim(val, "\"' \t\r\n")
}

func parseList(vals []string) []string {
	var out []string
	for _, v := range vals {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
