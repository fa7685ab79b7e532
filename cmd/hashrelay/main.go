package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hashrelay/hashrelay/internal/adapters/docker"
	"github.com/hashrelay/hashrelay/internal/adapters/duckdb"
	"github.com/hashrelay/hashrelay/internal/adapters/hashtopolis"
	appconfig "github.com/hashrelay/hashrelay/internal/config"
	"github.com/hashrelay/hashrelay/internal/core/ports"
	"github.com/hashrelay/hashrelay/internal/core/services"
	"github.com/hashrelay/hashrelay/pkg/gateway"
	"github.com/rs/cors"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// "hashrelay encrypt <value>" prints the enc:-prefixed form an operator
	// can paste into HASHRELAY_COORDINATOR_PASSWORD.
	if len(os.Args) > 1 && os.Args[1] == "encrypt" {
		if err := encryptValue(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger.Info("starting hashrelay")

	if err := run(logger); err != nil {
		logger.Error("hashrelay startup failed", "error", err)
		os.Exit(1)
	}
}

func encryptValue(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: hashrelay encrypt <value>")
	}
	secret, err := appconfig.NewSecretKey()
	if err != nil {
		return fmt.Errorf("init secret key: %w", err)
	}
	encrypted, err := secret.Encrypt(args[0])
	if err != nil {
		return fmt.Errorf("encrypt value: %w", err)
	}
	fmt.Println(encrypted)
	return nil
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("configuration loaded",
		"coordinator_url", cfg.CoordinatorURL,
		"coordinator_user", cfg.CoordinatorUser,
		"coordinator_password", appconfig.MaskSecret(cfg.CoordinatorPassword),
		"workers", cfg.Workers,
	)

	repo, err := duckdb.NewRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	defer repo.Close()

	coord := hashtopolis.NewClient(logger, hashtopolis.Config{
		ServerURL:   cfg.CoordinatorURL,
		Username:    cfg.CoordinatorUser,
		Password:    cfg.CoordinatorPassword,
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
	})
	coord.SetTraceStore(repo)
	defer coord.Close()

	// Container provisioning is optional: without a Docker daemon the
	// enrollment endpoint still hands out vouchers with manual instructions.
	var agents ports.AgentProvisioner
	if mgr, err := docker.NewAgentManager(cfg.AgentImage); err != nil {
		logger.Warn("docker unavailable, agent provisioning disabled", "error", err)
	} else {
		agents = mgr
	}

	eventBus := services.NewEventBus(logger)
	registry := services.NewRegistry()
	tracker := services.NewTracker(logger, coord, services.TrackerConfig{
		Interval: cfg.PollInterval,
		MaxPolls: cfg.MaxPolls,
	})
	dispatcher := services.NewDispatcher(logger, coord, registry, tracker, eventBus, services.DispatcherConfig{
		Workers:         cfg.Workers,
		DefaultWordlist: cfg.DefaultWordlist,
	})
	dispatcher.Start(ctx)

	apiServer := gateway.NewServer(logger, dispatcher, coord, eventBus, repo, agents, cfg.CoordinatorURL)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		dispatcher.Stop()
		dispatcher.Wait()
		logger.Info("dispatcher drained")
		return nil
	})

	return g.Wait()
}
