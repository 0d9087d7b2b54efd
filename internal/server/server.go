// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/database"
	"codeberg.org/oliverandrich/go-marketplace/internal/handlers"
	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/ratelimit"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/auth"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/email"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/registration"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	var opts []registration.Option
	if cfg.Redis.URL != "" && cfg.Registration.StartLimit > 0 {
		client, redisErr := ratelimit.NewRedisClient(ctx, cfg.Redis.URL)
		if redisErr != nil {
			return fmt.Errorf("failed to connect to redis: %w", redisErr)
		}
		defer closeRedis(client)

		limiter := ratelimit.New(client, "rl:register:", cfg.Registration.StartLimit, cfg.Registration.StartWindow)
		opts = append(opts, registration.WithLimiter(limiter))
	}

	registrations := registration.NewManager(repo, repo, notifier, cfg.Registration, opts...)
	go registrations.RunCleanup(ctx, cfg.Registration.CleanupInterval)

	sessions, err := session.NewManager(&cfg.Session, cfg.IsSecure())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	e := newEcho()
	setupMiddleware(e, cfg, sessions, repo)
	setupRoutes(e, handlers.New(repo), handlers.NewAuth(registrations, auth.NewService(repo), sessions))

	return startWithGracefulShutdown(ctx, e, cfg)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	return e
}

// newNotifier delivers codes over SMTP when configured and logs them otherwise.
func newNotifier(cfg *config.Config) (registration.Notifier, error) {
	if !cfg.SMTP.Enabled() {
		slog.Warn("smtp not configured, verification codes are only logged")
		return email.LogNotifier{}, nil
	}

	svc, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL, cfg.Registration.CodeTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}
	return svc, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Error("failed to close redis", "error", err)
	}
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
