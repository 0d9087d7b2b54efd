// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-marketplace/internal/models"
	"codeberg.org/oliverandrich/go-marketplace/internal/repository"
	"codeberg.org/oliverandrich/go-marketplace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshAttempt(email string, expiresAt time.Time) *models.RegistrationAttempt {
	return &models.RegistrationAttempt{
		Email:        email,
		ID:           "attempt-" + email,
		CodeHash:     "code-hash",
		ExpiresAt:    expiresAt,
		AttemptsLeft: 5,
		RegistrationPayload: models.RegistrationPayload{
			FirstName:    "Ada",
			LastName:     "Lovelace",
			PasswordHash: "password-hash",
		},
	}
}

func TestUpsertRegistrationAttempt_Insert(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	expires := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	a := freshAttempt("ada@example.com", expires)
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))
	assert.Equal(t, int64(1), a.Version)

	stored, err := repo.GetRegistrationAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)
	assert.Equal(t, "code-hash", stored.CodeHash)
	assert.True(t, expires.Equal(stored.ExpiresAt))
	assert.Equal(t, 5, stored.AttemptsLeft)
	assert.Nil(t, stored.BlockedUntil)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, "Lovelace", stored.LastName)
	assert.Equal(t, "password-hash", stored.PasswordHash)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpsertRegistrationAttempt_InsertConflict(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("ada@example.com", expires), 0))

	err := repo.UpsertRegistrationAttempt(ctx, freshAttempt("ada@example.com", expires), 0)

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpsertRegistrationAttempt_ReplacesWholeRecord(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := freshAttempt("ada@example.com", now.Add(10*time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))
	blocked := now.Add(15 * time.Minute)
	require.NoError(t, repo.RecordFailedVerification(ctx, a.Email, 1, 0, &blocked))
	require.NoError(t, repo.UpdateRegistrationCode(ctx, a.Email, 2, "other", now.Add(10*time.Minute)))

	next := freshAttempt("ada@example.com", now.Add(20*time.Minute))
	next.ID = "second"
	next.CodeHash = "new-code-hash"
	next.FirstName = "Augusta"
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, next, 3))
	assert.Equal(t, int64(4), next.Version)

	stored, err := repo.GetRegistrationAttempt(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "second", stored.ID)
	assert.Equal(t, "new-code-hash", stored.CodeHash)
	assert.Equal(t, 5, stored.AttemptsLeft)
	assert.Nil(t, stored.BlockedUntil)
	assert.Zero(t, stored.ResendCount)
	assert.Equal(t, "Augusta", stored.FirstName)
	assert.Equal(t, int64(4), stored.Version)
}

func TestUpsertRegistrationAttempt_StaleVersion(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute)

	a := freshAttempt("ada@example.com", expires)
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))
	require.NoError(t, repo.UpdateRegistrationCode(ctx, a.Email, 1, "other", expires))

	err := repo.UpsertRegistrationAttempt(ctx, freshAttempt("ada@example.com", expires), 1)

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpsertRegistrationAttempt_UpdateMissingRecord(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpsertRegistrationAttempt(context.Background(), freshAttempt("ada@example.com", time.Now()), 3)

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestGetRegistrationAttempt_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetRegistrationAttempt(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateRegistrationCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := freshAttempt("ada@example.com", now.Add(time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))
	require.NoError(t, repo.RecordFailedVerification(ctx, a.Email, 1, 3, nil))

	newExpiry := now.Add(10 * time.Minute)
	require.NoError(t, repo.UpdateRegistrationCode(ctx, a.Email, 2, "new-hash", newExpiry))

	stored, err := repo.GetRegistrationAttempt(ctx, a.Email)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.CodeHash)
	assert.True(t, newExpiry.Equal(stored.ExpiresAt))
	assert.Equal(t, 3, stored.AttemptsLeft)
	assert.Equal(t, 1, stored.ResendCount)
	assert.Equal(t, "password-hash", stored.PasswordHash)
	assert.Equal(t, int64(3), stored.Version)
}

func TestUpdateRegistrationCode_Conflict(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	a := freshAttempt("ada@example.com", time.Now().Add(time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))

	err := repo.UpdateRegistrationCode(ctx, a.Email, 7, "new-hash", time.Now())

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRecordFailedVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := freshAttempt("ada@example.com", now.Add(10*time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))

	require.NoError(t, repo.RecordFailedVerification(ctx, a.Email, 1, 4, nil))
	stored, err := repo.GetRegistrationAttempt(ctx, a.Email)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.AttemptsLeft)
	assert.Nil(t, stored.BlockedUntil)

	until := now.Add(15 * time.Minute)
	require.NoError(t, repo.RecordFailedVerification(ctx, a.Email, 2, 0, &until))
	stored, err = repo.GetRegistrationAttempt(ctx, a.Email)
	require.NoError(t, err)
	assert.Zero(t, stored.AttemptsLeft)
	require.NotNil(t, stored.BlockedUntil)
	assert.True(t, until.Equal(*stored.BlockedUntil))
}

func TestRecordFailedVerification_Conflict(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	a := freshAttempt("ada@example.com", time.Now().Add(time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))
	require.NoError(t, repo.RecordFailedVerification(ctx, a.Email, 1, 4, nil))

	err := repo.RecordFailedVerification(ctx, a.Email, 1, 4, nil)

	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRecordFailedVerification_RejectsNegativeAttempts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	a := freshAttempt("ada@example.com", time.Now().Add(time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))

	err := repo.RecordFailedVerification(ctx, a.Email, 1, -1, nil)

	assert.Error(t, err)
}

func TestDeleteRegistrationAttempt(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	a := freshAttempt("ada@example.com", time.Now().Add(time.Minute))
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, a, 0))

	require.NoError(t, repo.DeleteRegistrationAttempt(ctx, a.Email))
	_, err := repo.GetRegistrationAttempt(ctx, a.Email)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// deleting again is a no-op
	assert.NoError(t, repo.DeleteRegistrationAttempt(ctx, a.Email))
}

func TestDeleteStaleRegistrationAttempts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	cutoff := now.Add(-24 * time.Hour)

	// expired long ago, never blocked
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("old@example.com", now.Add(-48*time.Hour)), 0))
	// expired recently
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("recent@example.com", now.Add(-time.Hour)), 0))
	// still active
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("active@example.com", now.Add(time.Hour)), 0))
	// expired long ago, block ended long ago
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("unblocked@example.com", now.Add(-72*time.Hour)), 0))
	ended := now.Add(-48 * time.Hour)
	require.NoError(t, repo.RecordFailedVerification(ctx, "unblocked@example.com", 1, 0, &ended))
	// expired long ago, block ended recently
	require.NoError(t, repo.UpsertRegistrationAttempt(ctx, freshAttempt("blocked@example.com", now.Add(-72*time.Hour)), 0))
	recent := now.Add(-time.Hour)
	require.NoError(t, repo.RecordFailedVerification(ctx, "blocked@example.com", 1, 0, &recent))

	deleted, err := repo.DeleteStaleRegistrationAttempts(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.CountRegistrationAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, email := range []string{"recent@example.com", "active@example.com", "blocked@example.com"} {
		_, err := repo.GetRegistrationAttempt(ctx, email)
		assert.NoError(t, err, email)
	}
}
