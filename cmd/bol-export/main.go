// Command bol-export serializes processed documents from a sqlite store
// to an export file, outside the server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/freightdocs/bol-pipeline/internal/export"
	"github.com/freightdocs/bol-pipeline/internal/store"
)

func main() {
	dbPath := flag.String("db", "./data/boltriage.db", "sqlite store path")
	format := flag.String("format", "xlsx", "export format: json, csv, or xlsx")
	out := flag.String("out", "", "output file (defaults to bol_export.<format>)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	f, err := export.ParseFormat(*format)
	if err != nil {
		logger.Error("invalid format", "error", err)
		os.Exit(1)
	}
	dest := *out
	if dest == "" {
		dest = fmt.Sprintf("bol_export.%s", f)
	}

	st, err := store.NewGormStore(*dbPath, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	svc := export.NewService(st, logger)
	b, err := svc.BulkExport(context.Background(), f)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(dest, b, 0o644); err != nil {
		logger.Error("write output", "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "path", dest, "bytes", len(b))
}
