// Package config loads server settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the server. Values come from the process
// environment, optionally seeded from a .env file by main.
type Config struct {
	Port      string `env:"PORT"       envDefault:"5175"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	DBPath    string `env:"DB_PATH"    envDefault:"./data/app.db"`

	JWTSecret      string `env:"JWT_SECRET"       envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME"      envDefault:"emoji_token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN"    envDefault:"http://localhost:5173"`
	Environment    string `env:"NODE_ENV"         envDefault:"development"`

	DailySalt      string `env:"DAILY_SALT"       envDefault:"local_dev_salt"`
	EmojisFile     string `env:"EMOJIS_FILE"`
	EmojisPoolFile string `env:"EMOJIS_POOL_FILE"`
}

// Production reports whether cookies should be marked Secure.
func (c Config) Production() bool { return c.Environment == "production" }

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpiresDays <= 0 {
		cfg.JWTExpiresDays = 14
	}
	return cfg, nil
}
