// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/auth"
	"codeberg.org/oliverandrich/go-marketplace/internal/services/registration"
	"github.com/labstack/echo/v4"
)

// Error codes for failures that are not registration rejections.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidCodeFormat  = "INVALID_CODE_FORMAT"
	CodeNameRequired       = "NAME_REQUIRED"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Status            int        `json:"-"`
	Code              string     `json:"code"`
	Message           string     `json:"message"`
	Details           []string   `json:"details,omitempty"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	AttemptsLeft      int        `json:"attempts_left,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

var rejectionStatus = map[registration.Reason]int{
	registration.ReasonEmailTaken:  http.StatusConflict,
	registration.ReasonBlocked:     http.StatusLocked,
	registration.ReasonNoAttempt:   http.StatusNotFound,
	registration.ReasonExpired:     http.StatusGone,
	registration.ReasonInvalid:     http.StatusUnprocessableEntity,
	registration.ReasonRateLimited: http.StatusTooManyRequests,
}

var rejectionMessage = map[registration.Reason]string{
	registration.ReasonEmailTaken:  "error_email_taken",
	registration.ReasonBlocked:     "error_blocked",
	registration.ReasonNoAttempt:   "error_no_attempt",
	registration.ReasonExpired:     "error_expired",
	registration.ReasonRateLimited: "error_rate_limited",
}

// ErrorHandler renders errors returned by handlers as localized JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := toAPIError(c.Request().Context(), err)
	if apiErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}
	if apiErr.RetryAfterSeconds > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfterSeconds))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(apiErr.Status)
	} else {
		err = c.JSON(apiErr.Status, apiErr)
	}
	if err != nil {
		slog.Error("error_response_failed", "error", err)
	}
}

func toAPIError(ctx context.Context, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if rej, ok := registration.AsRejection(err); ok {
		return rejectionError(ctx, rej)
	}

	var pve *auth.PasswordValidationError
	if errors.As(err, &pve) {
		return passwordError(ctx, pve)
	}

	switch {
	case errors.Is(err, registration.ErrInvalidEmail):
		return newAPIError(ctx, http.StatusBadRequest, CodeInvalidEmail, "error_invalid_email")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(ctx, http.StatusUnauthorized, CodeInvalidCredentials, "error_invalid_credentials")
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return httpError(ctx, he)
	}

	return newAPIError(ctx, http.StatusInternalServerError, CodeInternal, "error_internal")
}

func newAPIError(ctx context.Context, status int, code, messageID string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: i18n.T(ctx, messageID),
	}
}

func rejectionError(ctx context.Context, rej *registration.RejectionError) *APIError {
	status, ok := rejectionStatus[rej.Reason]
	if !ok {
		status = http.StatusBadRequest
	}
	apiErr := &APIError{Status: status, Code: string(rej.Reason)}

	switch rej.Reason {
	case registration.ReasonInvalid:
		apiErr.AttemptsLeft = rej.AttemptsLeft
		apiErr.Message = i18n.TPlural(ctx, "error_invalid_code", rej.AttemptsLeft)
	case registration.ReasonBlocked:
		apiErr.BlockedUntil = rej.BlockedUntil
		until := ""
		if rej.BlockedUntil != nil {
			until = rej.BlockedUntil.UTC().Format("2006-01-02 15:04 MST")
		}
		apiErr.Message = i18n.TData(ctx, "error_blocked", map[string]any{"BlockedUntil": until})
	case registration.ReasonRateLimited:
		apiErr.RetryAfterSeconds = int((rej.RetryAfter + time.Second - 1) / time.Second)
		apiErr.Message = i18n.T(ctx, rejectionMessage[rej.Reason])
	default:
		apiErr.Message = i18n.T(ctx, rejectionMessage[rej.Reason])
	}
	return apiErr
}

func passwordError(ctx context.Context, pve *auth.PasswordValidationError) *APIError {
	apiErr := newAPIError(ctx, http.StatusBadRequest, CodeWeakPassword, "error_password_invalid")
	for _, e := range pve.Errors {
		msg := i18n.TData(ctx, "password_"+e.Code, e.Params)
		if msg == "password_"+e.Code {
			msg = e.Message
		}
		apiErr.Details = append(apiErr.Details, msg)
	}
	return apiErr
}

func httpError(ctx context.Context, he *echo.HTTPError) *APIError {
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
	if code == "" {
		code = "HTTP_" + strconv.Itoa(he.Code)
	}

	msg, ok := he.Message.(string)
	if !ok || he.Code >= http.StatusInternalServerError {
		msg = i18n.T(ctx, "error_internal")
	}
	if he.Code == http.StatusUnauthorized {
		code = CodeUnauthorized
		msg = i18n.T(ctx, "error_unauthorized")
	}

	return &APIError{Status: he.Code, Code: code, Message: msg}
}
