// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// UserFinder looks up users for password login.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Service struct {
	users             UserFinder
	passwordValidator *PasswordValidator
}

func NewService(users UserFinder) *Service {
	return &Service{
		users:             users,
		passwordValidator: DefaultPasswordValidator(),
	}
}

// Login authenticates a user by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// CheckPassword returns a *PasswordValidationError if the password violates
// the policy. userAttributes are the email and names the password must not
// resemble.
func (s *Service) CheckPassword(password string, userAttributes ...string) error {
	result := s.passwordValidator.Validate(password, userAttributes...)
	if !result.Valid {
		return &PasswordValidationError{Errors: result.Errors}
	}
	return nil
}
