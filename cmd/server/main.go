package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clubvote/internal/app"
	"clubvote/internal/auth"
	"clubvote/internal/config"
	"clubvote/internal/event"
	"clubvote/internal/metrics"
	"clubvote/internal/session"
	httpTransport "clubvote/internal/transport/http"
)

//go:embed web/*
var webFS embed.FS

// sessionPurgeInterval is how often expired login sessions are deleted
const sessionPurgeInterval = time.Hour

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting clubvote server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"votingMode", cfg.Voting.Mode,
	)

	users, err := auth.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		logger.Error("failed to load users", "error", err)
		os.Exit(1)
	}
	logger.Info("users loaded", "path", cfg.Auth.UsersFile, "count", users.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sessions, err := session.Open(ctx, cfg.Session.Driver, cfg.Session.DSN, cfg.Session.TTL)
	cancel()
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	electionMetrics := metrics.NewElectionMetrics(promRegistry, "clubvote")

	// Event publishing
	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Error("failed to create kafka publisher", "error", err)
			os.Exit(1)
		}
		publisher = kp
		logger.Info("publishing election events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// Create election registry
	registry := app.NewRegistry(logger,
		app.WithPublisher(publisher),
		app.WithMetrics(electionMetrics),
		app.WithRetention(cfg.Voting.Retention),
	)
	defer registry.Close()

	web, err := fs.Sub(webFS, "web")
	if err != nil {
		logger.Error("failed to get web subdirectory", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	server := httpTransport.NewServer(cfg, registry, users, sessions, promRegistry, logger, web)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	done := make(chan struct{})
	go purgeSessions(sessions, logger, done)

	// Wait for interrupt signal; SIGHUP reloads the users file
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range quit {
		if sig != syscall.SIGHUP {
			break
		}
		if err := users.Reload(); err != nil {
			logger.Error("failed to reload users", "error", err)
			continue
		}
		logger.Info("users reloaded", "count", users.Len())
	}
	close(done)

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func purgeSessions(sessions *session.Store, logger *slog.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(context.Background())
			if err != nil {
				logger.Warn("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
