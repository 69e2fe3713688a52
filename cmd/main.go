package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"opguide/internal/config"
	"opguide/internal/fetcher"
	"opguide/internal/metrics"
	"opguide/internal/opguide"
	"opguide/internal/summarizer"
)

var (
	cfg config.Config
	log *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "opguide",
		Short: "Build operational guides from Azure resources",
		Long: `opguide lists the resources of an Azure subscription, summarizes every
resource type with an LLM and assembles the summaries into an OpGuide document.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}

			log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
			slog.SetDefault(log)

			return nil
		},
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if log != nil {
			log.ErrorContext(ctx, "Command failed",
				"error", err)
		}
		cancel()
		os.Exit(1)
	}
}

func newService(
	ctx context.Context,
	runs opguide.RunRecorder,
	m *metrics.Metrics,
) (*opguide.Service, error) {
	f, err := fetcher.New(cfg, log)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "Fetcher is initialized",
		"fetcher", f.Name())

	return opguide.NewService(opguide.Options{
		Fetcher:          f,
		Summarizer:       initOpenAISummarizer(ctx),
		Runs:             runs,
		Metrics:          m,
		SummarizeTimeout: cfg.SummarizeTimeout,
	}, log), nil
}

func initOpenAISummarizer(ctx context.Context) summarizer.Summarizer {
	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so every group will fail to summarize",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return s
}
