// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context.
package appcontext

import (
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context carrying the signed-in user.
type Context struct {
	echo.Context
	User *models.User // nil if not authenticated
}

// GetUser returns the authenticated user, or nil if not authenticated.
func (c *Context) GetUser() *models.User {
	return c.User
}

// IsAuthenticated returns true if the user is authenticated.
func (c *Context) IsAuthenticated() bool {
	return c.User != nil
}

// Wrap returns middleware that replaces the Echo context with a *Context.
// It must run before anything that reads or sets the user.
func Wrap() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.(*Context); ok {
				return next(c)
			}
			return next(&Context{Context: c})
		}
	}
}

// UserFrom returns the authenticated user of c, or nil.
func UserFrom(c echo.Context) *models.User {
	if cc, ok := c.(*Context); ok {
		return cc.GetUser()
	}
	return nil
}
