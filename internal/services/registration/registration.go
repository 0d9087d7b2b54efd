// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package registration owns the lifecycle of pending registrations: code
// issuance, resend, verification with lockout and promotion to a user.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/config"
	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// maxWriteRetries bounds the re-read loop after a lost optimistic write.
const maxWriteRetries = 20

// AttemptStore persists registration attempts keyed by email. All writes
// except deletes are conditional on the version the caller read and return
// repository.ErrConflict when it no longer matches.
type AttemptStore interface {
	GetRegistrationAttempt(ctx context.Context, email string) (*models.RegistrationAttempt, error)
	UpsertRegistrationAttempt(ctx context.Context, a *models.RegistrationAttempt, expectedVersion int64) error
	UpdateRegistrationCode(ctx context.Context, email string, expectedVersion int64, codeHash string, expiresAt time.Time) error
	RecordFailedVerification(ctx context.Context, email string, expectedVersion int64, attemptsLeft int, blockedUntil *time.Time) error
	DeleteRegistrationAttempt(ctx context.Context, email string) error
	DeleteStaleRegistrationAttempts(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserStore is the part of the user repository registration depends on.
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUserIfAbsent(ctx context.Context, nu repository.NewUser) (*models.User, bool, error)
}

// Notifier delivers a plaintext code to the owner of an email address.
type Notifier interface {
	SendCode(ctx context.Context, email, code string) error
}

// Limiter throttles registration starts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, e.g. with a manual clock in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLimiter enables start throttling.
func WithLimiter(l Limiter) Option {
	return func(m *Manager) {
		m.limiter = l
	}
}

// Manager implements the registration attempt lifecycle.
type Manager struct {
	attempts AttemptStore
	users    UserStore
	notifier Notifier
	limiter  Limiter
	cfg      config.RegistrationConfig
	now      func() time.Time
}

// NewManager creates a registration manager.
func NewManager(attempts AttemptStore, users UserStore, notifier Notifier, cfg config.RegistrationConfig, opts ...Option) *Manager {
	m := &Manager{
		attempts: attempts,
		users:    users,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartParams holds the registration form data.
type StartParams struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	ClientIP  string
}

// CodeIssued describes a freshly sent code. NotifyErr is set when the record
// was written but delivering the code failed; the caller may resend.
type CodeIssued struct {
	Email     string
	ExpiresAt time.Time
	NotifyErr error
}

// Start creates or supersedes the pending registration for an email and sends
// it a new code.
func (m *Manager) Start(ctx context.Context, p StartParams) (*CodeIssued, error) {
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}

	taken, err := m.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if taken {
		slog.Info("registration_rejected", "email", email, "reason", ReasonEmailTaken)
		return nil, reject(ReasonEmailTaken)
	}

	existing, err := m.load(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsBlocked(m.now()) {
		slog.Info("registration_rejected", "email", email, "reason", ReasonBlocked)
		return nil, blocked(existing.BlockedUntil)
	}

	if err := m.checkLimit(ctx, email, p.ClientIP); err != nil {
		return nil, err
	}

	code, codeHash, err := m.newCode()
	if err != nil {
		return nil, err
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(p.Password), m.cfg.PasswordHashCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	attempt := &models.RegistrationAttempt{
		Email: email,
		RegistrationPayload: models.RegistrationPayload{
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			PasswordHash: string(passwordHash),
		},
	}

	for range maxWriteRetries {
		now := m.now()
		attempt.ID = uuid.NewString()
		attempt.CodeHash = codeHash
		attempt.ExpiresAt = now.Add(m.cfg.CodeTTL)
		attempt.AttemptsLeft = m.cfg.MaxAttempts

		var expected int64
		if existing != nil {
			expected = existing.Version
		}

		err = m.attempts.UpsertRegistrationAttempt(ctx, attempt, expected)
		if err == nil {
			slog.Info("registration_started", "email", email, "attempt_id", attempt.ID, "superseded", existing != nil)
			return m.deliver(ctx, email, code, attempt.ExpiresAt), nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("storing registration attempt: %w", err)
		}

		// Someone else wrote in between; re-evaluate against the new state.
		if taken, err = m.users.EmailExists(ctx, email); err != nil {
			return nil, fmt.Errorf("checking email: %w", err)
		}
		if taken {
			return nil, reject(ReasonEmailTaken)
		}
		if existing, err = m.load(ctx, email); err != nil {
			return nil, err
		}
		if existing != nil && existing.IsBlocked(m.now()) {
			return nil, blocked(existing.BlockedUntil)
		}
	}
	return nil, ErrContention
}

// Resend issues a new code for an existing attempt. Remaining attempts and
// the payload are left untouched.
func (m *Manager) Resend(ctx context.Context, email string) (*CodeIssued, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	for range maxWriteRetries {
		attempt, err := m.load(ctx, email)
		if err != nil {
			return nil, err
		}
		if attempt == nil {
			return nil, reject(ReasonNoAttempt)
		}
		if attempt.IsBlocked(m.now()) {
			return nil, blocked(attempt.BlockedUntil)
		}

		code, codeHash, err := m.newCode()
		if err != nil {
			return nil, err
		}
		expiresAt := m.now().Add(m.cfg.CodeTTL)

		err = m.attempts.UpdateRegistrationCode(ctx, email, attempt.Version, codeHash, expiresAt)
		if err == nil {
			slog.Info("registration_code_resent", "email", email, "attempt_id", attempt.ID, "resend_count", attempt.ResendCount+1)
			return m.deliver(ctx, email, code, expiresAt), nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("updating registration code: %w", err)
		}
	}
	return nil, ErrContention
}

// Verified is the outcome of a successful verification.
type Verified struct {
	Email   string
	Payload models.RegistrationPayload
}

// Verify checks a code against the pending attempt. A wrong code consumes one
// attempt; using up the last one locks the email out. A correct code leaves
// the attempt in place for Promote.
func (m *Manager) Verify(ctx context.Context, email, code string) (*Verified, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	for range maxWriteRetries {
		attempt, err := m.load(ctx, email)
		if err != nil {
			return nil, err
		}
		if attempt == nil {
			return nil, reject(ReasonNoAttempt)
		}

		now := m.now()
		if attempt.IsBlocked(now) {
			return nil, blocked(attempt.BlockedUntil)
		}
		if attempt.IsExpired(now) {
			return nil, reject(ReasonExpired)
		}

		if bcrypt.CompareHashAndPassword([]byte(attempt.CodeHash), []byte(code)) == nil {
			slog.Info("registration_verified", "email", email, "attempt_id", attempt.ID)
			return &Verified{Email: email, Payload: attempt.RegistrationPayload}, nil
		}

		left := max(attempt.AttemptsLeft-1, 0)
		var until *time.Time
		if left == 0 {
			u := now.Add(m.cfg.LockoutDuration)
			until = &u
		}

		err = m.attempts.RecordFailedVerification(ctx, email, attempt.Version, left, until)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recording failed verification: %w", err)
		}

		if until != nil {
			slog.Warn("registration_blocked", "email", email, "attempt_id", attempt.ID, "blocked_until", *until)
			return nil, blocked(until)
		}
		slog.Info("registration_code_invalid", "email", email, "attempts_left", left)
		return nil, &RejectionError{Reason: ReasonInvalid, AttemptsLeft: left}
	}
	return nil, ErrContention
}

// Promote turns a verified registration into a user. If a user with the
// email already exists it is returned instead. The attempt is deleted once the
// user exists; it is kept when user creation fails so the caller can retry.
func (m *Manager) Promote(ctx context.Context, v *Verified) (*models.User, error) {
	user, created, err := m.users.CreateUserIfAbsent(ctx, repository.NewUser{
		Email:         v.Email,
		FirstName:     v.Payload.FirstName,
		LastName:      v.Payload.LastName,
		PasswordHash:  v.Payload.PasswordHash,
		EmailVerified: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := m.attempts.DeleteRegistrationAttempt(ctx, v.Email); err != nil {
		// The account exists; a leftover attempt is inert and swept later.
		slog.Error("registration_cleanup_failed", "email", v.Email, "error", err)
	}

	slog.Info("registration_completed", "email", v.Email, "user_id", user.ID, "created", created)
	return user, nil
}

// Complete verifies the code and promotes the attempt in one call.
func (m *Manager) Complete(ctx context.Context, email, code string) (*models.User, error) {
	v, err := m.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return m.Promote(ctx, v)
}

// Status is a read-only snapshot of the pending registration for an email.
type Status struct {
	Email        string              `json:"email"`
	State        models.AttemptState `json:"state"`
	Exists       bool                `json:"exists"`
	Blocked      bool                `json:"blocked"`
	BlockedUntil *time.Time          `json:"blocked_until,omitempty"`
	AttemptsLeft int                 `json:"attempts_left"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	Expired      bool                `json:"expired"`
}

// Status reports the state of the pending registration without modifying it.
func (m *Manager) Status(ctx context.Context, email string) (*Status, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	attempt, err := m.load(ctx, email)
	if err != nil {
		return nil, err
	}

	now := m.now()
	st := &Status{Email: email, State: attempt.State(now)}
	if attempt == nil {
		return st, nil
	}

	expiresAt := attempt.ExpiresAt
	st.Exists = true
	st.Blocked = attempt.IsBlocked(now)
	st.AttemptsLeft = attempt.AttemptsLeft
	st.ExpiresAt = &expiresAt
	st.Expired = attempt.IsExpired(now)
	if st.Blocked {
		until := *attempt.BlockedUntil
		st.BlockedUntil = &until
	}
	return st, nil
}

// load returns the attempt for email or nil if there is none.
func (m *Manager) load(ctx context.Context, email string) (*models.RegistrationAttempt, error) {
	attempt, err := m.attempts.GetRegistrationAttempt(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading registration attempt: %w", err)
	}
	return attempt, nil
}

func (m *Manager) newCode() (code, hash string, err error) {
	code, err = GenerateCode()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(code), m.cfg.CodeHashCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing code: %w", err)
	}
	return code, string(h), nil
}

// deliver sends the code. The record is already committed at this point, so a
// delivery failure is reported but never undoes it.
func (m *Manager) deliver(ctx context.Context, email, code string, expiresAt time.Time) *CodeIssued {
	issued := &CodeIssued{Email: email, ExpiresAt: expiresAt}
	if err := m.notifier.SendCode(ctx, email, code); err != nil {
		slog.Warn("code_send_failed", "email", email, "error", err)
		issued.NotifyErr = err
	}
	return issued
}

func (m *Manager) checkLimit(ctx context.Context, email, clientIP string) error {
	if m.limiter == nil {
		return nil
	}

	keys := []string{"email:" + email}
	if clientIP != "" {
		keys = append(keys, "ip:"+clientIP)
	}

	for _, key := range keys {
		allowed, retryAfter, err := m.limiter.Allow(ctx, key)
		if err != nil {
			slog.Warn("rate_limit_check_failed", "key", key, "error", err)
			continue
		}
		if !allowed {
			slog.Info("registration_rejected", "email", email, "reason", ReasonRateLimited, "key", key)
			return &RejectionError{Reason: ReasonRateLimited, RetryAfter: retryAfter}
		}
	}
	return nil
}
