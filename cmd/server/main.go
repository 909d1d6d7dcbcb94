// Command server runs the reward ledger HTTP service.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/qahub/rewards/internal/app"
	"github.com/qahub/rewards/internal/app/events"
	eventskafka "github.com/qahub/rewards/internal/app/events/kafka"
	"github.com/qahub/rewards/internal/app/httpapi"
	"github.com/qahub/rewards/internal/app/storage"
	"github.com/qahub/rewards/internal/app/storage/memory"
	"github.com/qahub/rewards/internal/app/storage/postgres"
	"github.com/qahub/rewards/internal/config"
	"github.com/qahub/rewards/internal/platform/migrations"
	"github.com/qahub/rewards/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Fatal("load config")
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.WithError(err).Fatal("ping database")
		}
		if err := migrations.Apply(ctx, db); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		store = postgres.New(db)
		log.Info("using postgres store")
	} else {
		store = memory.New()
		log.Warn("DATABASE_URL not set; using in-memory store")
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := eventskafka.NewPublisher(cfg.Kafka.Brokers)
		defer kp.Close()
		publisher = kp
		log.WithField("brokers", cfg.Kafka.Brokers).Info("kafka events enabled")
	}

	application, err := app.New(app.Stores{Data: store}, publisher, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           httpapi.NewHandler(application, cfg.Auth.Tokens, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}
}
