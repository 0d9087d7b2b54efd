// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is a permanent marketplace account.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64      `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	EmailVerified   bool       `db:"email_verified" json:"email_verified"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	IsAdmin         bool       `db:"is_admin" json:"is_admin"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
