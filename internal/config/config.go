package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	FetcherAzure = "azure"
	FetcherMock  = "mock"
	FetcherFile  = "file"
)

type Config struct {
	Token            string        `env:"TOKEN"`
	AllowedUsers     []int64       `env:"ALLOWED_USERS"`
	DBPath           string        `env:"DB_PATH"           envDefault:"db.sqlite"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIModel      string        `env:"OPENAI_MODEL"`
	HTTPAddr         string        `env:"HTTP_ADDR"         envDefault:":8080"`
	Fetcher          string        `env:"FETCHER"           envDefault:"azure"`
	InventoryPath    string        `env:"INVENTORY_PATH"`
	SummarizeTimeout time.Duration `env:"SUMMARIZE_TIMEOUT" envDefault:"0s"`
	LogLevel         slog.Level    `env:"LOG_LEVEL"         envDefault:"INFO"`
}

// AzureConfig is parsed on every fetch rather than at startup, so credentials
// can be rotated without restarting the process.
type AzureConfig struct {
	SubscriptionID string `env:"AZURE_SUBSCRIPTION_ID,required,notEmpty"`
	ClientID       string `env:"AZURE_CLIENT_ID,required,notEmpty"`
	TenantID       string `env:"AZURE_TENANT_ID"`
	ClientSecret   string `env:"AZURE_CLIENT_SECRET"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Fetcher {
	case FetcherAzure, FetcherMock:
	case FetcherFile:
		if cfg.InventoryPath == "" {
			return Config{}, fmt.Errorf("INVENTORY_PATH is required when FETCHER=%s", FetcherFile)
		}
	default:
		return Config{}, fmt.Errorf("unknown FETCHER %q", cfg.Fetcher)
	}

	if cfg.SummarizeTimeout < 0 {
		return Config{}, fmt.Errorf("SUMMARIZE_TIMEOUT must not be negative, got %s", cfg.SummarizeTimeout)
	}

	return cfg, nil
}

func LoadAzure() (AzureConfig, error) {
	cfg, err := env.ParseAs[AzureConfig]()
	if err != nil {
		return AzureConfig{}, fmt.Errorf("parse azure env: %w", err)
	}

	return cfg, nil
}
