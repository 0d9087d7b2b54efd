// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// RegistrationPayload is the registration data held back until the email
// address is confirmed. It never contains the plaintext password.
type RegistrationPayload struct {
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	PasswordHash string `db:"password_hash" json:"-"`
}

// RegistrationAttempt is the pending registration for one email address.
// There is at most one per email.
type RegistrationAttempt struct { //nolint:govet // fieldalignment: readability over optimization
	Email        string     `db:"email" json:"email"`
	ID           string     `db:"id" json:"id"`
	CodeHash     string     `db:"code_hash" json:"-"` // bcrypt
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	AttemptsLeft int        `db:"attempts_left" json:"attempts_left"`
	BlockedUntil *time.Time `db:"blocked_until" json:"blocked_until,omitempty"`
	RegistrationPayload
	ResendCount int       `db:"resend_count" json:"resend_count"`
	Version     int64     `db:"version" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AttemptState is derived from the record fields; it is never stored.
type AttemptState string

const (
	AttemptAbsent  AttemptState = "absent"
	AttemptActive  AttemptState = "active"
	AttemptBlocked AttemptState = "blocked"
)

// IsBlocked reports whether the lockout is still in force at now.
func (a *RegistrationAttempt) IsBlocked(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

// IsExpired reports whether the current code is no longer valid at now.
// The code is invalid at and after ExpiresAt.
func (a *RegistrationAttempt) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// State returns the lifecycle state of the attempt at now. A nil attempt is absent.
func (a *RegistrationAttempt) State(now time.Time) AttemptState {
	switch {
	case a == nil:
		return AttemptAbsent
	case a.IsBlocked(now):
		return AttemptBlocked
	default:
		return AttemptActive
	}
}
