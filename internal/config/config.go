package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"`
	// Must be well under the 4s ticket reveal so the boundary is seen promptly.
	ClockTickInterval time.Duration `env:"CLOCK_TICK_INTERVAL" envDefault:"250ms"`
	LobbyInboxSize    int           `env:"LOBBY_INBOX_SIZE" envDefault:"64"`
	ClientOutboxSize  int           `env:"CLIENT_OUTBOX_SIZE" envDefault:"8"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads an optional .env file, then the environment. Real environment
// variables win over .env entries.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %v: %w", files, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.ClockTickInterval <= 0 || cfg.ClockTickInterval >= time.Second {
		return nil, fmt.Errorf("CLOCK_TICK_INTERVAL must be between 0 and 1s, got %s", cfg.ClockTickInterval)
	}
	return &cfg, nil
}

func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if c.AppEnv == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
