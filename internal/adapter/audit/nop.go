package audit

import (
	"context"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// NopPublisher discards all events. Used when no audit broker is configured.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that drops every event.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

// Publish does nothing.
func (*NopPublisher) Publish(context.Context, domain.Event) error {
	return nil
}
