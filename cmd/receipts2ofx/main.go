package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mfenwick/receipts2ofx/constants"
	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/credentials"
	"github.com/mfenwick/receipts2ofx/internal/export"
	"github.com/mfenwick/receipts2ofx/internal/mailsource"
	"github.com/mfenwick/receipts2ofx/internal/parser"
	"github.com/mfenwick/receipts2ofx/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file (required)")
		out        = flag.String("output", "", "output OFX file path (overrides config)")
		days       = flag.Int("days", 0, "number of days of receipts to include (overrides config)")
		xlsxOut    = flag.String("xlsx", "", "also write an XLSX summary to this path (optional)")
	)
	flag.Parse()

	if *configPath == "" {
		printError("Error: -config is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Output = *out
	}
	if *days > 0 {
		cfg.Days = *days
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// IMAP_PASSWORD wins; otherwise the OS keyring entry keyed by server
	store := credentials.ForConfig(cfg.IMAP.Password)
	password, err := store.Password(credentials.Service, cfg.IMAP.Server)
	if err != nil {
		logger.Error("failed to resolve IMAP password", "server", cfg.IMAP.Server, "error", err)
		os.Exit(1)
	}
	cfg.IMAP.Password = password

	ctx := context.Background()
	source := mailsource.NewIMAPSource(cfg.IMAP.Addr(), cfg.IMAP.Email, cfg.IMAP.Password, logger)
	proc := pipeline.NewProcessor(source, parser.NewParser(logger), logger)

	window := mailsource.Window{
		Folder:  cfg.IMAP.Folder,
		Since:   time.Now().AddDate(0, 0, -cfg.Days),
		Subject: constants.ReceiptSubject,
	}
	result, err := proc.Run(ctx, cfg.IMAP.Email, window)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	formatter := export.NewFormatter(logger)
	ofx, err := formatter.FormatOFX(result.AccountID, result.Transactions)
	if err != nil {
		logger.Error("failed to format OFX", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(cfg.Output, ofx, 0o644); err != nil {
		logger.Error("failed to write output", "path", cfg.Output, "error", err)
		os.Exit(1)
	}
	logger.Info("wrote OFX statement", "path", cfg.Output, "transactions", len(result.Transactions))

	if *xlsxOut != "" {
		wb, err := formatter.FormatXLSX(result.AccountID, result.Transactions)
		if err != nil {
			logger.Error("failed to format XLSX", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, wb, 0o644); err != nil {
			logger.Error("failed to write XLSX", "path", *xlsxOut, "error", err)
			os.Exit(1)
		}
		logger.Info("wrote XLSX summary", "path", *xlsxOut)
	}

	if len(result.Transactions) == 0 {
		logger.Warn("no transactions found in window",
			"folder", cfg.IMAP.Folder, "days", cfg.Days)
	}
	for _, f := range result.Failures {
		printError("failed to parse %q (%s): %v\n",
			f.Subject, f.ReceivedAt.Format("2006-01-02"), f.Err)
	}
	if len(result.Failures) > 0 {
		os.Exit(1)
	}
}
