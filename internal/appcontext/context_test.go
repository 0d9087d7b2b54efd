// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-marketplace/internal/appcontext"
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_GetUser(t *testing.T) {
	user := &models.User{ID: 123, Email: "ada@example.com"}
	ctx := &appcontext.Context{User: user}

	assert.Equal(t, user, ctx.GetUser())
	assert.True(t, ctx.IsAuthenticated())
}

func TestContext_GetUser_Nil(t *testing.T) {
	ctx := &appcontext.Context{}

	assert.Nil(t, ctx.GetUser())
	assert.False(t, ctx.IsAuthenticated())
}

func TestWrap(t *testing.T) {
	e := echo.New()
	e.Use(appcontext.Wrap())

	var wrapped bool
	e.GET("/", func(c echo.Context) error {
		_, wrapped = c.(*appcontext.Context)
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, wrapped)
}

func TestUserFrom(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Nil(t, appcontext.UserFrom(c))

	user := &models.User{ID: 7}
	assert.Equal(t, user, appcontext.UserFrom(&appcontext.Context{Context: c, User: user}))
}
