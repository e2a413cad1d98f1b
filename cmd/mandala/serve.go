package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/mandala-api/internal/config"
	"github.com/arnold/mandala-api/internal/database"
	"github.com/arnold/mandala-api/internal/goaltree"
	"github.com/arnold/mandala-api/internal/handlers"
	"github.com/arnold/mandala-api/internal/routes"
	"github.com/arnold/mandala-api/internal/services"
	"github.com/arnold/mandala-api/internal/storage"
	"github.com/arnold/mandala-api/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, closeStore, err := openStorage(cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	collector := telemetry.NewCollector("mandala")
	metrics := services.NewMetricsService(db)
	history := services.NewCelebrationHistory(db)
	hub := handlers.NewHub(log)
	hub.OnChange(collector.SetSocketClients)

	opts := []goaltree.Option{
		goaltree.WithLogger(log),
		goaltree.WithGateway(goaltree.NewGateway(store, log)),
		goaltree.WithMetricsProvider(metrics),
		goaltree.WithSink(history),
		goaltree.WithSink(hub),
		goaltree.WithSink(collector),
		goaltree.WithObserver(collector),
	}
	if push := services.NewPush(ctx, cfg.FCMServiceAccount, cfg.FCMTopic, log); push.Enabled() {
		opts = append(opts, goaltree.WithSink(push))
	}
	engine := goaltree.New(opts...)

	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	if _, err := engine.SyncMetrics(ctx); err != nil {
		log.WithError(err).Warn("Metrics: startup sync failed")
	}

	app := fiber.New(fiber.Config{AppName: "mandala-api"})
	app.Use(recover.New())
	app.Use(cors.New())
	routes.Setup(app, handlers.New(handlers.Deps{
		Engine:    engine,
		Metrics:   metrics,
		History:   history,
		Hub:       hub,
		Telemetry: collector,
		Log:       log,
	}), hub, collector)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// openStorage builds the tree's key/value backend.
func openStorage(cfg *config.Config, db *gorm.DB, log logrus.FieldLogger) (storage.Storage, func(), error) {
	switch cfg.StorageDriver {
	case "", "database":
		return database.NewEntryStore(db), func() {}, nil
	case "badger":
		b, err := storage.OpenBadger(storage.BadgerConfig{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
			Logger:     log,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.WithError(err).Warn("Badger: close failed")
			}
		}, nil
	case "memory":
		log.Warn("Storage: memory driver, the tree is lost on exit")
		return storage.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}
