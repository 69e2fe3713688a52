package fetcher

import (
	"fmt"
	"log/slog"

	"opguide/internal/config"
	"opguide/internal/fetcher/azure"
	"opguide/internal/fetcher/inventory"
	"opguide/internal/opguide"
)

// New picks the fetcher named by cfg.Fetcher.
func New(cfg config.Config, log *slog.Logger) (opguide.Fetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherAzure:
		return azure.NewFetcher(log), nil
	case config.FetcherMock:
		return inventory.NewMock(), nil
	case config.FetcherFile:
		return inventory.NewFile(cfg.InventoryPath), nil
	default:
		return nil, fmt.Errorf("fetcher %s not found", cfg.Fetcher)
	}
}
