// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/auth"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/registration"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for registration and sign-in.
type AuthHandlers struct {
	registration *registration.Manager
	auth         *auth.Service
	sessions     *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(reg *registration.Manager, authSvc *auth.Service, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		registration: reg,
		auth:         authSvc,
		sessions:     sessions,
	}
}

// RegisterRequest is the request body for starting a registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// EmailRequest is the request body for resending a code.
type EmailRequest struct {
	Email string `json:"email"`
}

// VerifyRequest is the request body for confirming a code.
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// CodeSentResponse is returned after a code was issued.
type CodeSentResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CodeSent  bool      `json:"code_sent"`
	Message   string    `json:"message"`
}

// Register starts a registration and mails a verification code.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	email, err := registration.NormalizeEmail(req.Email)
	if err != nil {
		return err
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		return badRequest(c, CodeNameRequired, "error_name_required")
	}

	if err := h.auth.CheckPassword(req.Password, email, localPart(email), req.FirstName, req.LastName); err != nil {
		return err
	}

	issued, err := h.registration.Start(c.Request().Context(), registration.StartParams{
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		ClientIP:  c.RealIP(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, codeSent(c, issued))
}

// Resend issues a new code for a pending registration.
func (h *AuthHandlers) Resend(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	issued, err := h.registration.Resend(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, codeSent(c, issued))
}

// Verify confirms the code, creates the account and signs the user in.
func (h *AuthHandlers) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	code := strings.TrimSpace(req.Code)
	if !registration.IsWellFormedCode(code) {
		return badRequest(c, CodeInvalidCodeFormat, "error_invalid_code_format")
	}

	user, err := h.registration.Complete(c.Request().Context(), req.Email, code)
	if err != nil {
		return err
	}

	return h.signIn(c, user)
}

// Status reports the pending registration for ?email=.
func (h *AuthHandlers) Status(c echo.Context) error {
	st, err := h.registration.Status(c.Request().Context(), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AuthHandlers) signIn(c echo.Context, user *models.User) error {
	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, user)
}

func codeSent(c echo.Context, issued *registration.CodeIssued) CodeSentResponse {
	msgID := "registration_code_sent"
	if issued.NotifyErr != nil {
		msgID = "registration_code_not_sent"
	}
	return CodeSentResponse{
		Email:     issued.Email,
		ExpiresAt: issued.ExpiresAt,
		CodeSent:  issued.NotifyErr == nil,
		Message:   i18n.T(c.Request().Context(), msgID),
	}
}
