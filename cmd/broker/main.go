package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/questgate/authbroker/internal/broker"
	"github.com/questgate/authbroker/internal/config"
	"github.com/questgate/authbroker/internal/directory"
	"github.com/questgate/authbroker/internal/keys"
	"github.com/questgate/authbroker/internal/store"
)

const ConfigPath = "config/broker.toml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("AUTHBROKER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LevelFilter.SlogLevel(),
	})))

	slog.Info("authbroker starting", "clients_addr", cfg.ClientsAddr(), "servers_addr", cfg.ServersAddr())

	if err := store.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	players, err := store.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer players.Close()

	keyStore, err := keys.NewStore()
	if err != nil {
		return fmt.Errorf("initializing signing key store: %w", err)
	}

	handler := &broker.Handler{
		Players:   players,
		Keys:      keyStore,
		Directory: directory.New(),
		Registry:  broker.NewRegistry(),
	}

	server := broker.NewServer(cfg, handler, handler.Registry, keyStore)
	if err := server.ReloadCertificate(); err != nil {
		return fmt.Errorf("loading initial certificate: %w", err)
	}

	watcher, err := config.NewWatcher(cfg.ServerCert, cfg.ServerKey, func() {
		if err := server.ReloadCertificate(); err != nil {
			slog.Error("certificate hot-reload failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("starting certificate watcher: %w", err)
	}
	defer watcher.Stop()

	return server.Run(ctx)
}
