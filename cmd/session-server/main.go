package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsefit/checkin-sync/pkg/api"
	"github.com/pulsefit/checkin-sync/pkg/broker"
	"github.com/pulsefit/checkin-sync/pkg/config"
	"github.com/pulsefit/checkin-sync/pkg/session"
	"github.com/pulsefit/checkin-sync/pkg/sweeper"
	"github.com/pulsefit/checkin-sync/pkg/telemetry"
)

func main() {
	ctx := context.Background()

	// Load configuration from file or environment
	cfg, err := config.Load("./cmd/session-server")
	if err != nil {
		logrus.Fatal("Error loading configuration: ", err)
	}

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		logrus.Fatal("Failed to initialize telemetry: ", err)
	}
	defer shutdownTelemetry()

	// Initialize the session repository
	repo, err := session.NewRepository(ctx, cfg.Database)
	if err != nil {
		logrus.Fatal("Failed to initialize repository: ", err)
	}

	// Initialize the message broker
	b, err := broker.NewBroker(ctx, &cfg.Broker)
	if err != nil {
		logrus.Fatal("Failed to initialize broker: ", err)
	}
	defer b.Close()

	svc := session.NewService(repo, b)

	// Auto-close sessions left open past the ceiling
	sw := sweeper.New(repo, b, cfg.Sweeper.Interval, cfg.Geofence.MaxSession())
	sw.Start(ctx)
	defer sw.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.NewRouter(svc),
	}

	go func() {
		logrus.WithField("addr", cfg.Server.ListenAddr).Info("session server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Server error: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown failed")
	}
}
