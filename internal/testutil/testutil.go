// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/database"
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of users created by NewTestUser.
const TestPassword = "correct-horse-battery-staple"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a verified test user whose password is TestPassword.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := repo.CreateUser(context.Background(), repository.NewUser{
		Email:         email,
		FirstName:     "Test",
		LastName:      "User",
		PasswordHash:  string(hash),
		EmailVerified: true,
	})
	require.NoError(t, err)
	return user
}

// NewTestAttempt stores a pending registration for email whose code is code.
func NewTestAttempt(t *testing.T, repo *repository.Repository, email, code string, expiresAt time.Time) *models.RegistrationAttempt {
	t.Helper()
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)

	attempt := &models.RegistrationAttempt{
		Email:        email,
		ID:           uuid.NewString(),
		CodeHash:     string(codeHash),
		ExpiresAt:    expiresAt,
		AttemptsLeft: 5,
		RegistrationPayload: models.RegistrationPayload{
			FirstName:    "Test",
			LastName:     "User",
			PasswordHash: "$2a$04$placeholder",
		},
	}
	require.NoError(t, repo.UpsertRegistrationAttempt(context.Background(), attempt, 0))
	return attempt
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// Clock is a manually advanced clock for deadline tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Notifier records verification codes instead of sending them.
type Notifier struct {
	mu    sync.Mutex
	codes map[string][]string
}

// NewNotifier returns an empty recording notifier.
func NewNotifier() *Notifier {
	return &Notifier{codes: make(map[string][]string)}
}

// SendCode records code for email.
func (n *Notifier) SendCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = append(n.codes[email], code)
	return nil
}

// LastCode returns the most recent code sent to email.
func (n *Notifier) LastCode(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	require.NotEmpty(t, codes, "no code sent to %s", email)
	return codes[len(codes)-1]
}
