package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rookgm/kopisort/internal/models"
)

// defaults for storage operations
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Policy describes bounded retry with linear backoff
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns policy with 3 attempts and 0.5s step
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Do runs op until it succeeds, fails with non-transient error or attempts are exhausted.
// Waits attempt*BaseDelay between attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if cerr := ctx.Err(); cerr != nil {
			return expired(attempt, err, cerr)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, time.Duration(attempt)*p.BaseDelay); serr != nil {
			return expired(attempt, err, serr)
		}
	}

	return &models.TransientStorageError{Attempts: attempts, Err: err}
}

// expired reports the last fault as transient when the caller's deadline ran out.
// Cancellation is returned as is.
func expired(attempt int, last, ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &models.TransientStorageError{Attempts: attempt, Err: last}
	}
	return ctxErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err is a recoverable connectivity fault
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// caller gave up, retrying would not help
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientCode(pgErr.Code)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// isTransientCode matches connection exceptions and server shutdown codes
func isTransientCode(code string) bool {
	if len(code) == 5 && code[:2] == "08" {
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return true
	}
	return false
}
