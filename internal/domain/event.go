package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies an audit event emitted after a committed operation.
type EventType string

const (
	EventTransferCreated  EventType = "transfer.created"
	EventTransferReversed EventType = "transfer.reversed"
	EventAccountCredited  EventType = "account.credited"
)

// Event is an advisory audit record. Events are published after commit and
// are never part of the consistency contract: a failed publish does not
// undo the operation.
type Event struct {
	Type       EventType  `json:"type"`
	TransferID *uuid.UUID `json:"transfer_id,omitempty"`
	AccountID  *uuid.UUID `json:"account_id,omitempty"`
	Amount     string     `json:"amount"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// EventPublisher publishes audit events to an external sink.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
