package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry is how long idempotency keys are kept before cleanup.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes keys older than expiry and returns the count.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}
	if deleted > 0 {
		slog.Info("cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys at the given interval until
// stopChan is closed. Blocks; run it in a goroutine.
func RunPeriodicCleanup(repo Repository, interval, expiry time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("initial idempotency cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic idempotency cleanup failed", "error", err)
			}
		case <-stopChan:
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
