package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ayurjain-livspace/skurge/internal/clients"
	"github.com/ayurjain-livspace/skurge/internal/config"
	"github.com/ayurjain-livspace/skurge/internal/handlers"
	"github.com/ayurjain-livspace/skurge/internal/logging"
	"github.com/ayurjain-livspace/skurge/internal/messaging/nats"
	"github.com/ayurjain-livspace/skurge/internal/relay"
	"github.com/ayurjain-livspace/skurge/internal/repository"
	"github.com/ayurjain-livspace/skurge/internal/server"
	"github.com/ayurjain-livspace/skurge/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.ConnString()

	// Run database migrations
	logger.Info("running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("database migrations completed")

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	natsClient, err := nats.NewClient(nats.Config{
		URL:           cfg.Messaging.NATS.URL,
		Name:          cfg.Messaging.NATS.Name,
		MaxReconnects: cfg.Messaging.NATS.MaxReconnects,
		ReconnectWait: cfg.Messaging.NATS.ReconnectWait,
		Timeout:       cfg.Messaging.NATS.Timeout,
		Username:      cfg.Messaging.NATS.Username,
		Password:      cfg.Messaging.NATS.Password,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	httpClient := clients.NewHTTPClient(cfg.HTTP)

	var enricher relay.Enricher
	if cfg.GraphQL.Enabled && cfg.GraphQL.Client.Endpoint != "" {
		enricher = clients.NewGraphQLClient(cfg.GraphQL.Client, httpClient)
	}

	dispatcher := relay.NewDispatcher(httpClient, clients.NewEventPublisher(natsClient))
	pipeline := relay.NewPipeline(repo, enricher, dispatcher, repo, logger)
	svc := service.NewService(repo, logger)
	handler := handlers.NewHandler(svc, pipeline, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("skurge listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
