package reversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// Service is the reversal engine: it validates the original record's
// state, applies the inverse balance mutation, marks the original as
// reversed, and appends a linked reversal record, all within one unit of
// work.
type Service struct {
	UoW    domain.UnitOfWork
	Audit  domain.EventPublisher
	Logger *zap.Logger
}

// NewService creates a new reversal Service instance.
func NewService(uow domain.UnitOfWork, audit domain.EventPublisher, logger *zap.Logger) *Service {
	return &Service{UoW: uow, Audit: audit, Logger: logger}
}

// ReverseTransfer undoes a prior transfer: the original sender gets the
// amount back, the original receiver is debited, the original record is
// marked reversed exactly once, and a new ledger record linked to the
// original is created with sender and receiver swapped.
//
// Failure modes: domain.ErrTransferNotFound, domain.ErrAlreadyReversed,
// domain.ErrInsufficientBalanceForReversal when the receiver has since
// spent the funds, and domain.ErrTransientStorage on exhausted commit
// retries. On any failure no state changes.
//
// A reversal record is itself an ordinary transfer and is eligible for
// its own reversal under the same rules.
func (s *Service) ReverseTransfer(ctx context.Context, transferID uuid.UUID, reason string) (*domain.Transfer, error) {
	var reversalRecord *domain.Transfer
	err := s.UoW.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		original, err := repos.Transfers.GetByID(ctx, transferID)
		if err != nil {
			return err
		}
		if original.Reversed {
			return fmt.Errorf("%w: transfer %s", domain.ErrAlreadyReversed, transferID)
		}

		// Same deterministic lock order as transfer creation.
		locked := make(map[uuid.UUID]*domain.Account, 2)
		for _, id := range domain.LockOrder(original.SenderID, original.ReceiverID) {
			account, err := repos.Accounts.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}
		sender := locked[original.SenderID]
		receiver := locked[original.ReceiverID]

		now := time.Now().UTC()
		if err := receiver.Debit(original.Amount, now); err != nil {
			if errors.Is(err, domain.ErrInsufficientBalance) {
				return fmt.Errorf("%w: transfer %s", domain.ErrInsufficientBalanceForReversal, transferID)
			}
			return err
		}
		if err := sender.Credit(original.Amount, now); err != nil {
			return err
		}

		if err := repos.Accounts.UpdateBalance(ctx, receiver); err != nil {
			return err
		}
		if sender != receiver {
			if err := repos.Accounts.UpdateBalance(ctx, sender); err != nil {
				return err
			}
		}

		if err := original.MarkReversed(reason, now); err != nil {
			return err
		}
		if err := repos.Transfers.MarkReversed(ctx, original); err != nil {
			return err
		}

		record := &domain.Transfer{
			ID:                 uuid.New(),
			SenderID:           original.ReceiverID,
			ReceiverID:         original.SenderID,
			Amount:             original.Amount,
			Description:        fmt.Sprintf("Reversal of transfer %s: %s", original.ID, reason),
			CreatedAt:          now,
			OriginalTransferID: &original.ID,
		}
		if err := repos.Transfers.Create(ctx, record); err != nil {
			return err
		}

		reversalRecord = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("transfer reversed",
		zap.String("original_id", transferID.String()),
		zap.String("reversal_id", reversalRecord.ID.String()),
		zap.String("amount", domain.FormatAmount(reversalRecord.Amount)),
	)
	s.publishReversed(ctx, reversalRecord)

	return reversalRecord, nil
}

func (s *Service) publishReversed(ctx context.Context, record *domain.Transfer) {
	event := domain.Event{
		Type:       domain.EventTransferReversed,
		TransferID: record.OriginalTransferID,
		Amount:     domain.FormatAmount(record.Amount),
		OccurredAt: record.CreatedAt,
	}
	if err := s.Audit.Publish(ctx, event); err != nil {
		s.Logger.Warn("audit publish failed",
			zap.String("transfer_id", record.ID.String()), zap.Error(err))
	}
}
