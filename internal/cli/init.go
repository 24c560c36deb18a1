// Package cli provides common CLI initialization utilities shared by
// cmd/saldo, cmd/saldo-notifier and cmd/saldo-snapshot.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saldo/internal/alerts"
	"saldo/internal/backend"
	"saldo/internal/config"
	"saldo/internal/log"
	gsheet "saldo/internal/sheets/google"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. A nil out keeps stdout.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	lc := log.DefaultConfig()
	if out != nil {
		lc.Output = out
	}
	if cfg != nil {
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.JSON = cfg.LogFormat == "json"
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadConfig loads the configuration and its logger, exiting the process
// when validation fails.
func LoadConfig() (*config.Config, *log.Logger) {
	return loadConfig(nil)
}

// LoadToolConfig is LoadConfig for command line tools whose stdout carries
// data; logs go to stderr.
func LoadToolConfig() (*config.Config, *log.Logger) {
	return loadConfig(os.Stderr)
}

func loadConfig(out io.Writer) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, out)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend creates the configured persistence backend or exits.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// InitStore creates the persistence backend without an alert publisher, for
// processes that only read or restore snapshots.
func InitStore(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	c := *cfg
	c.AMQPURL = ""
	return InitBackend(ctx, logger, &c)
}

// AlertEngine builds the rule engine from the configured thresholds.
func AlertEngine(cfg *config.Config) *alerts.Engine {
	return alerts.NewEngine(alerts.DefaultRules(cfg.AlertDueWindowDays, int64(cfg.AlertSpikeThresholdPercent))...)
}

// SheetsConfig maps the application config onto the Sheets client settings.
func SheetsConfig(cfg *config.Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		AlertsSheet:       cfg.GoogleAlertsSheetName,
		TransactionsSheet: cfg.GoogleTransactionsSheetName,
		OAuthClientFile:   cfg.GoogleOAuthClientFile,
		OAuthTokenFile:    cfg.GoogleOAuthTokenFile,
		OAuthClientJSON:   cfg.GoogleOAuthClientJSON,
		OAuthTokenJSON:    cfg.GoogleOAuthTokenJSON,
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
