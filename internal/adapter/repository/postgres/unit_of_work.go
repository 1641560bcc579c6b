package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// baseRetryDelay is the first backoff step; subsequent attempts double it
// and apply full jitter.
const baseRetryDelay = 10 * time.Millisecond

// Postgres error codes that mean the transaction lost a race and is safe
// to re-execute from scratch.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// UnitOfWork implements domain.UnitOfWork on database/sql transactions.
// Each WithinTx call opens a RepeatableRead transaction, hands
// transaction-scoped repositories to the closure, and commits or rolls
// back atomically. Serialization failures and deadlocks trigger a full
// re-execution of the closure up to maxRetries times.
type UnitOfWork struct {
	db         *DB
	maxRetries int
	logger     *zap.Logger
}

// NewUnitOfWork creates a new UnitOfWork over the given connection.
func NewUnitOfWork(db *DB, maxRetries int, logger *zap.Logger) *UnitOfWork {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &UnitOfWork{db: db, maxRetries: maxRetries, logger: logger}
}

// WithinTx runs fn inside a database transaction.
// Business errors returned by fn roll the transaction back and are
// returned unchanged. Conflicts are retried; once retries are exhausted
// the error wraps domain.ErrTransientStorage and no effect was applied.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	var lastErr error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepWithJitter(ctx, attempt); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrTransientStorage, err)
			}
		}

		err := u.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		u.logger.Warn("transaction conflict, re-executing",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%w: retries exhausted: %v", domain.ErrTransientStorage, lastErr)
}

func (u *UnitOfWork) attempt(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrTransientStorage, err)
	}
	defer tx.Rollback()

	repos := domain.Repositories{
		Accounts:  &accountRepository{q: tx},
		Transfers: &transferRepository{q: tx},
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return fmt.Errorf("%w: commit transaction: %v", domain.ErrTransientStorage, err)
	}
	return nil
}

// isRetryable reports whether the error carries a Postgres serialization
// failure or deadlock code anywhere in its chain.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}

// sleepWithJitter blocks for a full-jitter exponential backoff delay or
// until the context is done.
func sleepWithJitter(ctx context.Context, attempt int) error {
	delay := baseRetryDelay << attempt
	jittered := time.Duration(rand.Int63n(int64(delay)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jittered):
		return nil
	}
}
