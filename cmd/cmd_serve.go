package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"opguide/internal/bot"
	"opguide/internal/database"
	"opguide/internal/httpapi"
	"opguide/internal/metrics"
	"opguide/internal/opguide"
	"opguide/internal/scheduler"
	"opguide/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the daily OpGuide scheduler",
	Example: `  FETCHER=mock opguide serve            # Serve the embedded mock inventory
  TOKEN=... OPENAI_API_KEY=... opguide serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	start := time.Now()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("initialize db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := newService(ctx, db, metrics.New(reg))
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	api := httpapi.New(service, session.NewStore(), db, reg, log)
	g.Go(func() error {
		return api.Serve(gCtx, cfg.HTTPAddr)
	})

	if cfg.Token == "" {
		log.WarnContext(ctx, "TOKEN is missing so bot and scheduler are disabled",
			"envVar", "TOKEN")
	} else if err = startBot(gCtx, g, service, db); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}

	err = g.Wait()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return err
}

func startBot(ctx context.Context, g *errgroup.Group, service *opguide.Service, db *database.Database) error {
	botInst, err := bot.New(cfg.Token, service, db, cfg.AllowedUsers, log)
	if err != nil {
		return fmt.Errorf("initialize bot: %w", err)
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	sched := scheduler.New(ctx, service, db, botInst, log)
	if err = sched.Start(); err != nil {
		botInst.Stop()
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.HourlyOpGuideSpec,
		"timezone", scheduler.Timezone)

	g.Go(func() error {
		botInst.Start(ctx)

		sched.Stop()
		log.InfoContext(ctx, "Scheduler is stopped")

		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped")

		return nil
	})

	return nil
}
