package database

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/example/wordquiz/internal/apperr"
)

const (
	maxWriteAttempts = 5
	writeBackoff     = 20 * time.Millisecond
)

// isContention reports whether err is lock contention or a serialization
// failure that may succeed on retry
func isContention(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

// withRetry runs op, retrying contention failures with a linear backoff
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err = op(); err == nil || !isContention(err) {
			return err
		}
		if attempt == maxWriteAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * writeBackoff):
		}
	}
	return apperr.Conflict("write contention persisted after retries", err)
}
