package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/kurantoB/TwitterClone-sub000/internal/repository"
	pkglog "github.com/kurantoB/TwitterClone-sub000/pkg/log"
)

// txFunc is one attempt of a mutation. It reports whether anything changed.
type txFunc func(tx repository.GraphTx) (bool, error)

func (c *followCoordinator) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	b.MaxInterval = c.cfg.RetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

// runTx runs fn in a fresh transaction per attempt. Serialization failures
// restart the whole unit of work from its inputs, up to RetryAttempts times;
// after that the caller gets ErrTryAgain. Any other error stops immediately.
func (c *followCoordinator) runTx(ctx context.Context, op string, fn txFunc) (bool, error) {
	l := pkglog.Ctx(ctx)
	attempt := 0

	operation := func() (bool, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.TxTimeout)
		defer cancel()

		var changed bool
		err := c.graph.Transact(attemptCtx, func(tx repository.GraphTx) error {
			var err error
			changed, err = fn(tx)
			return err
		})
		switch {
		case err == nil:
			return changed, nil
		case errors.Is(err, repository.ErrSerialization):
			l.Debug().Err(err).
				Str("op", op).
				Int(pkglog.FieldAttempt, attempt).
				Msg("transaction conflict")
			return false, fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		default:
			return false, backoff.Permanent(translateRepoErr(err))
		}
	}

	changed, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.RetryAttempts)),
	)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			l.Warn().Str("op", op).Int(pkglog.FieldAttempt, attempt).Msg("giving up after repeated conflicts")
			return false, fmt.Errorf("%w (%d attempts)", ErrTryAgain, attempt)
		}
		return false, err
	}
	return changed, nil
}

func translateRepoErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	return err
}

// isTerminal reports errors that are the caller's fault and leave the
// graph untouched.
func isTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSelfReference) ||
		errors.Is(err, ErrBlocked)
}
