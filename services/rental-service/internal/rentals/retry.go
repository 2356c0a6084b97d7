package rentals

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/apperr"
	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

// Transact runs fn in one store transaction, bounded by the configured
// per-attempt timeout. Transient store failures and attempt timeouts rerun fn
// with the same inputs up to MaxAttempts times; anything else is returned as
// is. Exhausted retries and an expired caller deadline surface as
// apperr.ErrTransient.
func (e *Engine) Transact(ctx context.Context, op string, fn func(ctx context.Context, tx storage.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.InitialBackoff
	b.MaxInterval = e.cfg.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		txCtx, cancel := context.WithTimeout(ctx, e.cfg.TxTimeout)
		defer cancel()

		err := e.store.RunInTx(txCtx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if retryable(ctx, err) {
			e.logger.Warn("transient store failure", "op", op, "attempt", attempt, "err", err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(e.cfg.MaxAttempts)))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if retryable(ctx, err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s gave up after %d attempts: %w", apperr.ErrTransient, op, attempt, err)
	}
	return err
}

// retryable separates contention and attempt timeouts from caller
// cancellation and logical failures.
func retryable(ctx context.Context, err error) bool {
	if errors.Is(err, storage.ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return true
	}
	return false
}
