package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolhub/internal/api"
	"schoolhub/internal/auth"
	"schoolhub/internal/config"
	"schoolhub/internal/content"
	"schoolhub/internal/db"
	"schoolhub/internal/legacy"
	"schoolhub/internal/metrics"
	"schoolhub/internal/seed"
	"schoolhub/internal/store"
	"schoolhub/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	slog.Info("starting server", "addr", cfg.Addr())

	database, err := db.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	ctx := context.Background()
	st := store.New(db.NewKVStore(database))
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	authManager := auth.NewManager(st, hasher)
	contentManager := content.NewManager(st, authManager)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	if err := authManager.Initialize(ctx); err != nil {
		slog.Error("failed to initialize users", "error", err)
		os.Exit(1)
	}
	if err := contentManager.Initialize(ctx); err != nil {
		slog.Error("failed to initialize content", "error", err)
		os.Exit(1)
	}

	imported, err := legacy.Import(ctx, st, cfg.Storage.LegacyDir, hasher)
	if err != nil {
		slog.Error("failed to import legacy data", "dir", cfg.Storage.LegacyDir, "error", err)
		os.Exit(1)
	}
	if len(imported) > 0 {
		slog.Info("legacy data imported", "dir", cfg.Storage.LegacyDir, "collections", imported)
	}
	if err := legacy.Migrate(ctx, st, hasher); err != nil {
		slog.Error("failed to migrate documents", "error", err)
		os.Exit(1)
	}

	if cfg.SeedEnabled() {
		seeded, err := seed.NewLoader(st, authManager, cfg.Seed.AdminPassword).Load(ctx)
		if err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		if seeded {
			slog.Info("demo data seeded")
		}
	}

	maintenanceService := db.NewMaintenanceService(database, cfg.Storage.MaintenanceInterval)
	maintenanceCtx, maintenanceCancel := context.WithCancel(ctx)
	go maintenanceService.Start(maintenanceCtx)

	hub := ws.NewHub()
	go hub.Run()
	contentManager.SetNotifier(hub)

	metrics.Register()

	server, err := api.NewServer(cfg, api.Deps{
		Database: database,
		Auth:     authManager,
		Content:  contentManager,
		JWT:      jwtService,
		Hub:      hub,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	maintenanceCancel()
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
