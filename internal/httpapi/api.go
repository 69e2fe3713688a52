package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opguide/internal/domain"
	"opguide/internal/opguide"
	"opguide/internal/session"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// RunHistory reads back the summarization runs of a session, newest first.
type RunHistory interface {
	GetRecentRuns(ctx context.Context, sessionKey string, limit int) ([]domain.Run, error)
}

type API struct {
	service  *opguide.Service
	sessions *session.Store
	runs     RunHistory
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

func New(
	service *opguide.Service,
	sessions *session.Store,
	runs RunHistory,
	gatherer prometheus.Gatherer,
	log *slog.Logger,
) *API {
	return &API{
		service:  service,
		sessions: sessions,
		runs:     runs,
		gatherer: gatherer,
		log:      log,
	}
}

func (api *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.logRequests)

	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", api.CreateSession)
			sessions.DELETE("/:id", api.DeleteSession)
			sessions.POST("/:id/fetch", api.Fetch)
			sessions.GET("/:id/resources", api.Resources)
			sessions.PUT("/:id/selection", api.Select)
			sessions.POST("/:id/summaries", api.Summarize)
			sessions.GET("/:id/summaries", api.Summaries)
			sessions.POST("/:id/resource-summaries", api.SummarizeResources)
			sessions.GET("/:id/opguide", api.OpGuide)
			sessions.GET("/:id/runs", api.Runs)
		}
	}

	router.GET("/healthz", api.Health)
	if api.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// Serve listens on addr until ctx is done, then shuts the server down.
func (api *API) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		api.log.InfoContext(ctx, "HTTP server is started",
			"addr", addr)

		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	api.log.InfoContext(ctx, "HTTP server is stopped")

	return nil
}

func (api *API) logRequests(c *gin.Context) {
	start := time.Now()

	c.Next()

	level := slog.LevelDebug
	if c.Writer.Status() >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	api.log.Log(c.Request.Context(), level, "HTTP request is handled",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}
