package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer represents one completed movement of funds between two
// accounts. A record is immutable once created except for the
// reversed-flag transition, which may happen at most once.
type Transfer struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time

	Reversed       bool
	ReversalReason *string
	ReversedAt     *time.Time

	// OriginalTransferID is set only on a record that itself represents a
	// reversal; nil on ordinary transfers.
	OriginalTransferID *uuid.UUID
}

// Validate ensures the transfer adheres to domain rules.
func (t *Transfer) Validate() error {
	if t.SenderID == uuid.Nil {
		return errors.New("transfer must have a sender account id")
	}
	if t.ReceiverID == uuid.Nil {
		return errors.New("transfer must have a receiver account id")
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transfer amount must be positive")
	}
	return nil
}

// IsReversal reports whether this record itself reverses another transfer.
func (t *Transfer) IsReversal() bool {
	return t.OriginalTransferID != nil
}

// MarkReversed sets the reversed flag, reason, and timestamp.
// The transition is allowed exactly once; a second call returns
// ErrAlreadyReversed.
func (t *Transfer) MarkReversed(reason string, now time.Time) error {
	if t.Reversed {
		return ErrAlreadyReversed
	}
	t.Reversed = true
	t.ReversalReason = &reason
	t.ReversedAt = &now
	return nil
}
