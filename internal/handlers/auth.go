// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/go-marketplace/internal/appcontext"
	"github.com/labstack/echo/v4"
)

// LoginRequest is the request body for password sign-in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs a user in with email and password.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return h.signIn(c, user)
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return message(c, http.StatusOK, "logout_success")
}

// Me returns the signed-in user.
func (h *AuthHandlers) Me(c echo.Context) error {
	user := appcontext.UserFrom(c)
	if user == nil {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, user)
}
