// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"github.com/vinovest/sqlx"
)

// NewUser holds the fields of a user that is about to be created.
type NewUser struct {
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string
	EmailVerified bool
}

// CreateUser creates a new user. It fails if the email is already taken.
func (r *Repository) CreateUser(ctx context.Context, nu NewUser) (*models.User, error) {
	var user *models.User
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash, email_verified, email_verified_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nu.Email, nu.FirstName, nu.LastName, nu.PasswordHash, nu.EmailVerified, verifiedAt(nu.EmailVerified, now), now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		user, err = getUser(ctx, tx, `SELECT * FROM users WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUserIfAbsent creates the user unless one with the same email exists,
// in which case the existing user is returned and created is false. Insert and
// lookup share one transaction, so concurrent callers all get the same row.
func (r *Repository) CreateUserIfAbsent(ctx context.Context, nu NewUser) (user *models.User, created bool, err error) {
	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash, email_verified, email_verified_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(email) DO NOTHING`,
			nu.Email, nu.FirstName, nu.LastName, nu.PasswordHash, nu.EmailVerified, verifiedAt(nu.EmailVerified, now), now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		user, err = getUser(ctx, tx, `SELECT * FROM users WHERE email = ?`, nu.Email)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, r.db, `SELECT * FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, r.db, `SELECT * FROM users WHERE email = ?`, email)
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, err
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

func getUser(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, q, &user, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

func verifiedAt(verified bool, now time.Time) *time.Time {
	if !verified {
		return nil
	}
	return &now
}
