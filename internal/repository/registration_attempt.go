// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/models"
)

// GetRegistrationAttempt retrieves the pending registration for an email.
func (r *Repository) GetRegistrationAttempt(ctx context.Context, email string) (*models.RegistrationAttempt, error) {
	var attempt models.RegistrationAttempt
	err := r.db.GetContext(ctx, &attempt, `SELECT * FROM registration_attempts WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &attempt, nil
}

// UpsertRegistrationAttempt writes a fresh attempt for a.Email in a single
// conditional statement. expectedVersion is the version the caller last
// observed, or 0 if it observed no record. If the stored state moved on in the
// meantime nothing is written and ErrConflict is returned. On success a holds
// the stored version and timestamps.
func (r *Repository) UpsertRegistrationAttempt(ctx context.Context, a *models.RegistrationAttempt, expectedVersion int64) error {
	now := time.Now().UTC()

	var query string
	args := []any{
		a.ID, a.CodeHash, a.ExpiresAt.UTC(), a.AttemptsLeft,
		a.FirstName, a.LastName, a.PasswordHash, now, now,
	}
	if expectedVersion == 0 {
		query = `INSERT INTO registration_attempts
			(id, code_hash, expires_at, attempts_left, blocked_until,
			 first_name, last_name, password_hash, resend_count, version, created_at, updated_at, email)
		 VALUES (?, ?, ?, ?, NULL, ?, ?, ?, 0, 1, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`
		args = append(args, a.Email)
	} else {
		query = `UPDATE registration_attempts
		 SET id = ?, code_hash = ?, expires_at = ?, attempts_left = ?, blocked_until = NULL,
		     first_name = ?, last_name = ?, password_hash = ?, resend_count = 0,
		     version = version + 1, created_at = ?, updated_at = ?
		 WHERE email = ? AND version = ?`
		args = append(args, a.Email, expectedVersion)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	a.BlockedUntil = nil
	a.ResendCount = 0
	a.Version = expectedVersion + 1
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// UpdateRegistrationCode replaces the code of an attempt and pushes out its
// expiry. Attempt counters and payload stay untouched.
func (r *Repository) UpdateRegistrationCode(ctx context.Context, email string, expectedVersion int64, codeHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE registration_attempts
		 SET code_hash = ?, expires_at = ?, resend_count = resend_count + 1,
		     version = version + 1, updated_at = ?
		 WHERE email = ? AND version = ?`,
		codeHash, expiresAt.UTC(), time.Now().UTC(), email, expectedVersion)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// RecordFailedVerification stores the outcome of a wrong code: the remaining
// attempts and, once they are used up, the end of the lockout.
func (r *Repository) RecordFailedVerification(ctx context.Context, email string, expectedVersion int64, attemptsLeft int, blockedUntil *time.Time) error {
	var until *time.Time
	if blockedUntil != nil {
		u := blockedUntil.UTC()
		until = &u
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE registration_attempts
		 SET attempts_left = ?, blocked_until = ?, version = version + 1, updated_at = ?
		 WHERE email = ? AND version = ?`,
		attemptsLeft, until, time.Now().UTC(), email, expectedVersion)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// DeleteRegistrationAttempt removes the attempt for an email. Deleting a
// missing attempt is not an error.
func (r *Repository) DeleteRegistrationAttempt(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM registration_attempts WHERE email = ?`, email)
	return err
}

// DeleteStaleRegistrationAttempts removes attempts whose code expired before
// cutoff and whose lockout, if any, also ended before cutoff.
func (r *Repository) DeleteStaleRegistrationAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM registration_attempts
		 WHERE expires_at < ? AND (blocked_until IS NULL OR blocked_until < ?)`,
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountRegistrationAttempts returns the number of pending registrations.
func (r *Repository) CountRegistrationAttempts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registration_attempts`)
	return count, err
}
