package domain

import (
	"bytes"
	"context"

	"github.com/google/uuid"
)

// LockOrder returns the two account ids in the ascending order in which
// their row locks must be acquired. Equal ids collapse to a single entry
// so an account is never locked twice in one transaction.
func LockOrder(a, b uuid.UUID) []uuid.UUID {
	if a == b {
		return []uuid.UUID{a}
	}
	if bytes.Compare(b[:], a[:]) < 0 {
		return []uuid.UUID{b, a}
	}
	return []uuid.UUID{a, b}
}

// AccountRepository defines the interface for account persistence operations.
// Implementations obtained through a UnitOfWork are bound to that unit's
// transaction; standalone instances read committed state.
type AccountRepository interface {
	// GetByID retrieves an account by its ID.
	// Returns ErrAccountNotFound if no account exists.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetForUpdate retrieves an account and acquires a write lock on it for
	// the duration of the enclosing transaction. Callers locking more than
	// one account must do so in ascending id order to avoid deadlocks.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// Create persists a new account.
	Create(ctx context.Context, account *Account) error

	// UpdateBalance persists the account's current balance.
	UpdateBalance(ctx context.Context, account *Account) error
}

// TransferFilter narrows a transfer listing.
type TransferFilter struct {
	// AccountID limits the listing to transfers where the account appears
	// as sender or receiver. Nil means all transfers.
	AccountID *uuid.UUID

	// Reversed limits the listing by the reversed flag. Nil means both.
	Reversed *bool

	Limit  int
	Offset int
}

// TransferRepository defines the interface for transfer ledger persistence.
// The ledger is append-mostly: records are created once and only the
// reversal-marking fields are ever updated, exactly once.
type TransferRepository interface {
	// GetByID retrieves a transfer record by its ID.
	// Returns ErrTransferNotFound if no record exists.
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)

	// Create persists a new transfer record.
	Create(ctx context.Context, transfer *Transfer) error

	// MarkReversed persists the reversal-marking fields of a record whose
	// reversed flag was just set. It must only be applied to a record that
	// was not reversed before; implementations enforce this transition.
	MarkReversed(ctx context.Context, transfer *Transfer) error

	// List retrieves transfer records matching the filter, newest first.
	List(ctx context.Context, filter TransferFilter) ([]*Transfer, error)
}

// Repositories bundles the transaction-scoped repositories handed to a
// unit-of-work closure.
type Repositories struct {
	Accounts  AccountRepository
	Transfers TransferRepository
}

// UnitOfWork is the explicit transaction boundary: WithinTx runs fn
// against a transactional handle and commits or rolls back atomically.
// Every read and write performed through the repositories it hands to fn
// either all take effect or none do.
//
// A conflicting commit (serialization failure, deadlock) is retried with
// a full re-execution of fn a bounded number of times; when retries are
// exhausted the error wraps ErrTransientStorage and zero effect was
// applied. Business errors returned by fn abort the transaction and are
// returned unchanged.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
