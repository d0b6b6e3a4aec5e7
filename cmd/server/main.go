package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pauljones0/live-deals/internal/config"
	"github.com/pauljones0/live-deals/internal/feed"
	"github.com/pauljones0/live-deals/internal/livedeals"
	"github.com/pauljones0/live-deals/internal/marketplace"
	"github.com/pauljones0/live-deals/internal/notifier"
	"github.com/pauljones0/live-deals/internal/scraper"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("Starting live deals server...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	s, err := scraper.New(cfg, scraper.LoadConfig(cfg.SelectorsPath))
	if err != nil {
		slog.Error("Critical error initializing scraper", "error", err)
		os.Exit(1)
	}
	if cfg.DiscordWebhookURL != "" {
		s.SetObserver(notifier.New(cfg.DiscordWebhookURL))
	}

	orchestrator := livedeals.New(
		livedeals.NewCache(cfg.CacheTTL, nil),
		feed.New(cfg.DealsFeedURL),
		marketplace.New(cfg),
		livedeals.NewScraperSource(s),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s.Start(ctx)

	srv := &Server{live: orchestrator, scraper: s, baseCtx: ctx}
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		<-ctx.Done()
		slog.Info("Received signal, shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}

	s.Stop()
	slog.Info("Server stopped.")
}
