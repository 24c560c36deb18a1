package main

import (
	"context"
	"errors"
	"os"

	"saldo/internal/amqp"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	mem "saldo/internal/sheets/memory"
	"saldo/internal/worker"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting saldo-notifier")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the notifier")
		return errors.New("missing AMQP_URL")
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	var sheet sheets.AlertWriter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Google Sheets configuration invalid", log.FieldError, err)
			return err
		}
		client, err := gsheet.New(ctx, cli.SheetsConfig(cfg), logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return err
		}
		sheet = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sheet = mem.New()
		logger.Warn("Google Sheets disabled - alerts are only kept in memory")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		return err
	}
	defer consumer.Close()

	notifier := worker.NewNotifier(res.Store, sheet, cfg.SheetsWritesPerMinute, logger)
	if err := notifier.Run(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		return err
	}
	return nil
}
