// Package main is the entry point for the notification API service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/moviehub/notify/internal/api"
	"github.com/moviehub/notify/internal/broker"
	"github.com/moviehub/notify/internal/config"
	"github.com/moviehub/notify/internal/database"
	"github.com/moviehub/notify/internal/ingress"
	"github.com/moviehub/notify/internal/logging"
	"github.com/moviehub/notify/internal/render"
	"github.com/moviehub/notify/internal/repository"
	"github.com/moviehub/notify/internal/sentryx"
)

func main() {
	_ = godotenv.Load()
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := sentryx.Init(cfg.SentryDSN, "api"); err != nil {
		log.Fatalf("Failed to initialize sentry: %v", err)
	}
	defer sentryx.Flush(2 * time.Second)

	db, err := database.NewConnection(database.Config{DSN: cfg.DatabaseDSN()}, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	brokerClient, err := broker.Connect(cfg.RabbitMQURL(), log)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer func() { _ = brokerClient.Close() }()

	publicKey, err := cfg.JWTPublicKey()
	if err != nil {
		log.Fatalf("Failed to load JWT public key: %v", err)
	}
	verifier, err := api.NewTokenVerifier(publicKey)
	if err != nil {
		log.Fatalf("Failed to build token verifier: %v", err)
	}

	templates := repository.NewTemplateRepository(db.DB, render.Validate)
	scheduled := repository.NewScheduledRepository(db.DB)
	periodic := repository.NewPeriodicRepository(db.DB)

	ingressService := ingress.NewService(templates, brokerClient, log)
	handlers := api.NewHandlers(ingressService, templates, scheduled, periodic, verifier, log)
	router := api.NewRouter(handlers)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Notification API listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
	log.Info("API service stopped")
}
