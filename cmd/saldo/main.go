package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	tracker := services.NewTracker(services.Options{
		Persister: res.Store,
		Publisher: res.Publisher,
		Engine:    cli.AlertEngine(cfg),
		Logger:    logger,
	})
	if err := tracker.Load(ctx); err != nil {
		logger.Error("Failed to load persisted state", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, tracker, apphttp.Options{
		Logger:             logger,
		Ready:              res.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting saldo server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := tracker.StartupEvaluation(gctx, cfg.AlertStartupDelay); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.AlertRefreshInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.AlertRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if added := tracker.RefreshAlerts(gctx); len(added) > 0 {
						logger.Info("Periodic alert evaluation", log.FieldAlertCount, len(added))
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := tracker.Close(shutdownCtx); err != nil {
			logger.Error("Failed to flush pending snapshots", log.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
