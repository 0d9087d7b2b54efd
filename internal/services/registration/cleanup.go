// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Cleanup deletes attempts whose code expired and whose lockout ended more
// than the configured retention ago. Correctness never depends on it.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.cfg.Retention)
	n, err := m.attempts.DeleteStaleRegistrationAttempts(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale registration attempts: %w", err)
	}
	if n > 0 {
		slog.Info("registration_attempts_swept", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Cleanup(ctx); err != nil && ctx.Err() == nil {
				slog.Error("registration_sweep_failed", "error", err)
			}
		}
	}
}
