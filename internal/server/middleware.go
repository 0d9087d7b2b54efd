// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-marketplace/internal/appcontext"
	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// UserLoader loads the user referenced by a session.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

func setupMiddleware(e *echo.Echo, cfg *config.Config, sessions *session.Manager, users UserLoader) {
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(appcontext.Wrap())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(i18nMiddleware())
	e.Use(AuthMiddleware(sessions, users))
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}

			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)

			return nil
		},
	})
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acceptLang := c.Request().Header.Get("Accept-Language")
			lang := i18n.MatchLanguage(acceptLang)
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// AuthMiddleware loads the session user into the app context. Sessions of
// users that no longer exist are ignored.
func AuthMiddleware(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc, ok := c.(*appcontext.Context)
			if !ok {
				return next(c)
			}

			data, err := sessions.Parse(c.Request())
			if err != nil || data == nil {
				return next(c)
			}

			user, err := users.GetUserByID(c.Request().Context(), data.UserID)
			switch {
			case err == nil:
				cc.User = user
			case errors.Is(err, repository.ErrNotFound):
				slog.Debug("session_user_missing", "user_id", data.UserID)
			default:
				return fmt.Errorf("loading session user: %w", err)
			}

			return next(c)
		}
	}
}

// RequireAuth rejects requests without a signed-in user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cc, ok := c.(*appcontext.Context); !ok || !cc.IsAuthenticated() {
				return echo.ErrUnauthorized
			}
			return next(c)
		}
	}
}
