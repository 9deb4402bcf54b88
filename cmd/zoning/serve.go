package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/beetlebugorg/zoning/internal/api"
	"github.com/beetlebugorg/zoning/internal/telemetry"
	"github.com/beetlebugorg/zoning/internal/watch"
)

var (
	serveAddr    string
	servePreload bool
	serveWatch   bool
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /zoning over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", cfg.Addr, "Listen address")
	f.BoolVar(&servePreload, "preload", false, "Load every jurisdiction before accepting requests")
	f.BoolVar(&serveWatch, "watch", true, "Reload jurisdictions when their files change")
	f.BoolVar(&serveOffline, "offline", cfg.Offline, "Offline mode (use cached citations only)")
}

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	logger := setupLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, snippets, err := newEngine(logger, serveOffline)
	if err != nil {
		return err
	}
	defer func() {
		if err := snippets.Save(); err != nil {
			logger.Warn("could not save snippet cache", "error", err)
		}
	}()

	if servePreload {
		start := time.Now()
		if err := engine.Warm(ctx); err != nil {
			return err
		}
		logger.Info("jurisdictions preloaded", "count", len(engine.Jurisdictions()), "duration", time.Since(start))
	}

	if serveWatch {
		w, err := watch.New(engine.Files(), engine, watch.Options{Logger: logger})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := telemetry.NewPrometheus(reg)

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandlers(engine, prom, logger), api.RouterOptions{
		Logger:    logger,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Metrics:   prom.Handler(),
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveAddr, "jurisdictions", engine.Jurisdictions())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
