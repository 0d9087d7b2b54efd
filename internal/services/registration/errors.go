// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"errors"
	"fmt"
	"time"
)

// Reason identifies why a registration operation was rejected.
type Reason string

const (
	ReasonEmailTaken  Reason = "EMAIL_TAKEN"
	ReasonBlocked     Reason = "BLOCKED"
	ReasonNoAttempt   Reason = "NO_ATTEMPT"
	ReasonExpired     Reason = "EXPIRED"
	ReasonInvalid     Reason = "INVALID"
	ReasonRateLimited Reason = "RATE_LIMITED"
)

var (
	ErrEmailTaken  = errors.New("email already registered")
	ErrBlocked     = errors.New("registration temporarily blocked")
	ErrNoAttempt   = errors.New("no pending registration")
	ErrExpired     = errors.New("verification code expired")
	ErrInvalidCode = errors.New("invalid verification code")
	ErrRateLimited = errors.New("too many registration attempts")

	ErrInvalidEmail = errors.New("invalid email address")
	ErrContention   = errors.New("registration attempt modified concurrently")
)

var reasonErrors = map[Reason]error{
	ReasonEmailTaken:  ErrEmailTaken,
	ReasonBlocked:     ErrBlocked,
	ReasonNoAttempt:   ErrNoAttempt,
	ReasonExpired:     ErrExpired,
	ReasonInvalid:     ErrInvalidCode,
	ReasonRateLimited: ErrRateLimited,
}

// RejectionError is returned when an operation is refused for a business
// reason. It unwraps to the sentinel error of its Reason.
type RejectionError struct {
	Reason       Reason
	BlockedUntil *time.Time    // BLOCKED
	AttemptsLeft int           // INVALID
	RetryAfter   time.Duration // RATE_LIMITED
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonBlocked:
		if e.BlockedUntil != nil {
			return fmt.Sprintf("%s until %s", ErrBlocked, e.BlockedUntil.Format(time.RFC3339))
		}
	case ReasonInvalid:
		return fmt.Sprintf("%s, %d attempts left", ErrInvalidCode, e.AttemptsLeft)
	case ReasonRateLimited:
		return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
	}
	return e.Unwrap().Error()
}

func (e *RejectionError) Unwrap() error {
	if err, ok := reasonErrors[e.Reason]; ok {
		return err
	}
	return fmt.Errorf("registration rejected: %s", e.Reason)
}

// AsRejection extracts the RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func blocked(until *time.Time) error {
	u := *until
	return &RejectionError{Reason: ReasonBlocked, BlockedUntil: &u}
}

func reject(reason Reason) error {
	return &RejectionError{Reason: reason}
}
