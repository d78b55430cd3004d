// mailfolders lists every folder on the configured IMAP server, to help
// find the receipts folder name for the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mfenwick/receipts2ofx/internal/common"
	"github.com/mfenwick/receipts2ofx/internal/credentials"
	"github.com/mfenwick/receipts2ofx/internal/mailsource"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (required)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		os.Exit(1)
	}
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	store := credentials.ForConfig(cfg.IMAP.Password)
	password, err := store.Password(credentials.Service, cfg.IMAP.Server)
	if err != nil {
		logger.Error("failed to resolve IMAP password", "error", err)
		os.Exit(1)
	}
	cfg.IMAP.Password = password

	source := mailsource.NewIMAPSource(cfg.IMAP.Addr(), cfg.IMAP.Email, cfg.IMAP.Password, logger)
	folders, err := source.ListFolders(context.Background())
	if err != nil {
		logger.Error("failed to list folders", "error", err)
		os.Exit(1)
	}
	for _, name := range folders {
		fmt.Println(name)
	}
}
