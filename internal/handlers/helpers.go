// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-marketplace/internal/i18n"
	"github.com/labstack/echo/v4"
)

// bind decodes the request body into v and rejects malformed input with 400.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return badRequest(c, CodeInvalidRequest, "error_invalid_request")
	}
	return nil
}

func badRequest(c echo.Context, code, messageID string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: i18n.T(c.Request().Context(), messageID),
	}
}

// message renders {"message": ...} with a localized text.
func message(c echo.Context, status int, messageID string) error {
	return c.JSON(status, map[string]string{
		"message": i18n.T(c.Request().Context(), messageID),
	})
}

func localPart(email string) string {
	if i := strings.LastIndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
