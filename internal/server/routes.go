// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/go-marketplace/internal/handlers"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, h *handlers.Handlers, ah *handlers.AuthHandlers) {
	e.GET("/health", h.Health)

	g := e.Group("/auth")
	g.POST("/register", ah.Register)
	g.POST("/register/resend", ah.Resend)
	g.POST("/register/verify", ah.Verify)
	g.GET("/register/status", ah.Status)
	g.POST("/login", ah.Login)
	g.POST("/logout", ah.Logout)
	g.GET("/me", ah.Me, RequireAuth())
}
