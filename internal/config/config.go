// Package config содержит логику чтения конфигурации дашборда.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/smm-dashboard/internal/order"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

const defaultEnvFile = ".env"

// Config содержит параметры конфигурации дашборда.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	PanelAPIAddress string `env:"PANEL_API_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	SessionSecret   string `env:"SESSION_SECRET"`
	PricingUnit     string `env:"PRICING_UNIT"`

	SearchDebounce      time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"300ms"`
	SearchBlurGrace     time.Duration `env:"SEARCH_BLUR_GRACE" envDefault:"300ms"`
	SearchRemoteLimit   int           `env:"SEARCH_REMOTE_LIMIT" envDefault:"50"`
	SearchFallbackLimit int           `env:"SEARCH_FALLBACK_LIMIT" envDefault:"30"`
	FallbackCategories  int           `env:"FALLBACK_CATEGORIES" envDefault:"10"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RequestRetries      int           `env:"REQUEST_RETRIES" envDefault:"2"`

	Pricing order.PricingUnit
}

// Parse считывает конфигурацию из .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envPanelAddress := cfg.PanelAPIAddress
	envDatabaseURI := cfg.DatabaseURI
	envSessionSecret := cfg.SessionSecret
	envPricingUnit := cfg.PricingUnit

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.PanelAPIAddress, "p", "", "panel API address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session cookie secret")
	flag.StringVar(&cfg.PricingUnit, "u", string(order.PerUnit), "pricing unit: unit or thousand")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envPanelAddress != "" {
		cfg.PanelAPIAddress = envPanelAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSessionSecret != "" {
		cfg.SessionSecret = envSessionSecret
	}
	if envPricingUnit != "" {
		cfg.PricingUnit = envPricingUnit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	pricing, err := order.ParsePricingUnit(cfg.PricingUnit)
	if err != nil {
		return nil, fmt.Errorf("parse pricing unit: %w", err)
	}
	cfg.Pricing = pricing

	return cfg, nil
}

// Search возвращает параметры поиска.
func (c *Config) Search() search.Config {
	s := search.DefaultConfig()
	s.Debounce = c.SearchDebounce
	s.BlurGrace = c.SearchBlurGrace
	s.RemoteLimit = c.SearchRemoteLimit
	s.FallbackLimit = c.SearchFallbackLimit
	return s
}
