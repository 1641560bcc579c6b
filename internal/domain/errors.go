package domain

import "errors"

// Business-rule errors returned by the engines. They are reported directly
// to the caller and never retried automatically.
var (
	// ErrInvalidAmount is returned when an amount is zero, negative, or
	// carries more than two fractional digits.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

	// ErrAccountNotFound is returned when an account id does not resolve
	// to an existing account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferNotFound is returned when a transfer id does not resolve
	// to an existing transfer record.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrInsufficientBalance is returned when the sender's balance is less
	// than the transfer amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientBalanceForReversal is returned when the original
	// receiver has since spent the funds and cannot cover the reversal.
	ErrInsufficientBalanceForReversal = errors.New("receiver does not have enough balance for reversal")

	// ErrAlreadyReversed is returned when reversing a transfer whose
	// reversed flag is already set.
	ErrAlreadyReversed = errors.New("transfer has already been reversed")

	// ErrSelfTransferNotAllowed is returned when sender and receiver are
	// the same account and the self-transfer policy disallows it.
	ErrSelfTransferNotAllowed = errors.New("sender and receiver must be different accounts")
)

// ErrTransientStorage marks a storage-level failure (serialization
// conflict, deadlock, connectivity loss) that performed zero effect and is
// safe to retry with a full re-execution of the transaction.
var ErrTransientStorage = errors.New("transient storage failure")
