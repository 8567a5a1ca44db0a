// Banking assistant server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/sukrithpvs/HSBC/internal/api"
	"github.com/sukrithpvs/HSBC/internal/config"
	"github.com/sukrithpvs/HSBC/internal/conversation"
	"github.com/sukrithpvs/HSBC/internal/middleware"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
	"github.com/sukrithpvs/HSBC/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if err := repo.SeedDemoData(context.Background()); err != nil {
		slog.Error("Failed to seed demo data", "error", err)
		os.Exit(1)
	}
	slog.Info("Demo data ready")

	// Language understanding: the model-backed client is optional; the
	// deterministic rules and templates carry every turn without it.
	var primaryResolver nlu.Resolver
	var primaryComposer nlu.Composer
	aiEnabled := false
	if cfg.NLU.APIKey != "" {
		client := nlu.NewClient(nlu.ClientConfig{
			BaseURL: cfg.NLU.BaseURL,
			APIKey:  cfg.NLU.APIKey,
			Model:   cfg.NLU.Model,
			Timeout: cfg.NLU.Timeout,
		}, logger)
		primaryResolver = client
		primaryComposer = client
		aiEnabled = true
		slog.Info("Language model backend enabled", "base_url", cfg.NLU.BaseURL, "model", cfg.NLU.Model)
	} else {
		slog.Info("Language model backend disabled (NLU_API_KEY not set), using deterministic fallback")
	}

	resolver := nlu.NewResolverChain(primaryResolver, nlu.RuleResolver{}, logger)
	composer := nlu.NewComposerChain(primaryComposer, nlu.TemplateComposer{}, logger)

	// Conversation core.
	contexts := conversation.NewContextStore()
	engine := conversation.NewEngine(contexts, resolver, composer, repo, logger)

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, engine, aiEnabled)
	wsHandler := ws.NewHandler(engine, ws.NewConnManager(), cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout, WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Start the idle-session sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contexts.StartSweeper(ctx, cfg.SessionIdleTTL, cfg.SessionSweepInterval)
	slog.Info("Session sweeper scheduled", "idle_ttl", cfg.SessionIdleTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
