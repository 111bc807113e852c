package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AuthorityURL      string        `env:"AUTHORITY_URL" envDefault:"http://localhost:8080"`
	AuthorityTimeout  time.Duration `env:"AUTHORITY_TIMEOUT" envDefault:"10s"`
	DBPath            string        `env:"DB_PATH" envDefault:"data/session.db"`
	LogLevel          slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	MinAccuracyMeters float64       `env:"MIN_ACCURACY_METERS" envDefault:"15"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
