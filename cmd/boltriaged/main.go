package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/async"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/export"
	"github.com/freightdocs/bol-pipeline/internal/extractor"
	"github.com/freightdocs/bol-pipeline/internal/server"
	"github.com/freightdocs/bol-pipeline/internal/store"
	"github.com/freightdocs/bol-pipeline/internal/triage"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var docStore store.DocumentStore
	switch cfg.Store.Driver {
	case "sqlite":
		gs, err := store.NewGormStore(cfg.Store.Path, slogger)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		docStore = gs
	default:
		docStore = store.NewMemoryStore(slogger)
	}

	gateway := extractor.NewGateway(cfg.Extractor, slogger)
	engine := triage.NewEngine(docStore, gateway, cfg.Triage, slogger)
	queue := async.NewTriageQueue(engine, slogger,
		async.WithWorkers(4),
		async.WithProcessTimeout(3*time.Minute),
	)
	exporter := export.NewService(docStore, slogger)

	app := fiber.New(fiber.Config{
		AppName:      "boltriaged",
		BodyLimit:    constants.MaxUploadBytes + 1024*1024,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(fiberlog.New())

	handler := server.NewHandler(docStore, engine, queue, exporter, logger)
	server.RegisterRoutes(app, handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()
	log.Infof("serving on %s", addr)

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warnf("server shutdown: %v", err)
	}
	fmt.Println("stopped.")
}
