package adaptive

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrStaleVersion means the row changed between read and write; the caller should retry.
	ErrStaleVersion = errors.New("stale row version")
	// ErrCalibrationIntegrity means an item with calibration history has zero or several latest rows.
	ErrCalibrationIntegrity = errors.New("item calibration integrity violation")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// IsRetryable reports whether a transaction failed for a reason another attempt can fix.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleVersion) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return true
		}
	}
	return false
}

// WithRetry runs fn up to attempts times while it fails with a retryable error.
// It returns the last error and the number of retries performed.
func WithRetry(ctx context.Context, attempts int, fn func() error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 10 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return i, err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
	return attempts - 1, err
}
