package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/sheets"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/snapshot"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var run func(context.Context, *config.Config, *log.Logger, *services.Tracker, []string) error
	switch os.Args[1] {
	case "export":
		run = runExport
	case "import":
		run = runImport
	case "sheets":
		run = runSheets
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	cfg, logger := cli.LoadToolConfig()
	logger = logger.WithComponent(log.ComponentSnapshot)

	ctx, stop := cli.SignalContext(logger)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)

	res := cli.InitStore(ctx, logger, cfg)
	tracker := services.NewTracker(services.Options{
		Persister: res.Store,
		Engine:    cli.AlertEngine(cfg),
		Logger:    logger,
	})

	err := tracker.Load(ctx)
	if err == nil {
		err = run(ctx, cfg, logger, tracker, os.Args[2:])
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if cerr := tracker.Close(closeCtx); cerr != nil {
		logger.Error("Failed to flush snapshots", log.FieldError, cerr)
		if err == nil {
			err = cerr
		}
	}
	closeCancel()
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup failed", log.FieldError, cerr)
	}
	cancel()
	stop()

	if err != nil {
		logger.Error("Command failed", "command", os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("saldo snapshot tool")
	fmt.Println("\nUsage:")
	fmt.Println("  saldo-snapshot <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  export    Write the ledger, goals and alerts as one JSON document")
	fmt.Println("  import    Replace all data with a previously exported document")
	fmt.Println("  sheets    Copy every transaction to the Google Sheets transactions tab")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'saldo-snapshot <command> -h' for more information on a command.")
}

func runExport(_ context.Context, _ *config.Config, logger *log.Logger, tracker *services.Tracker, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "", "output file (defaults to stdout)")
	_ = fs.Parse(args)

	data, err := tracker.Export()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	logger.Info("Export written", log.FieldPath, *out, "bytes", len(data))
	return nil
}

func runImport(ctx context.Context, _ *config.Config, logger *log.Logger, tracker *services.Tracker, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("f", "", "export document to import (required)")
	_ = fs.Parse(args)

	if *in == "" {
		return errors.New("-f is required")
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	if err := tracker.Import(ctx, data); err != nil {
		return err
	}
	logger.Info("Import applied", log.FieldPath, *in)
	return nil
}

func runSheets(ctx context.Context, cfg *config.Config, logger *log.Logger, tracker *services.Tracker, args []string) error {
	fs := flag.NewFlagSet("sheets", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := cfg.ValidateSheets(); err != nil {
		return err
	}
	client, err := gsheet.New(ctx, cli.SheetsConfig(cfg), logger)
	if err != nil {
		return err
	}

	data, err := tracker.Export()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	doc, err := snapshot.DecodeDocument(data)
	if err != nil {
		return err
	}

	n, err := client.WriteTransactions(ctx, sheets.TransactionRows(doc.Ledger))
	if err != nil {
		return fmt.Errorf("write transactions: %w", err)
	}
	logger.Info("Transactions copied to Google Sheets", log.FieldCount, n, "sheet", cfg.GoogleTransactionsSheetName)
	return nil
}
