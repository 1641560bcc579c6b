package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// CreateTransferInput represents the input for creating a transfer.
type CreateTransferInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// Service is the transfer engine: it validates inputs, debits the sender,
// credits the receiver, and appends the ledger record, all within one unit
// of work.
type Service struct {
	UoW       domain.UnitOfWork
	Transfers domain.TransferRepository
	Audit     domain.EventPublisher

	// AllowSelfTransfer controls whether a transfer where sender equals
	// receiver is accepted. The movement is a no-op on the balance but
	// still produces a ledger record.
	AllowSelfTransfer bool

	Logger *zap.Logger
}

// NewService creates a new transfer Service instance.
func NewService(
	uow domain.UnitOfWork,
	transfers domain.TransferRepository,
	audit domain.EventPublisher,
	allowSelfTransfer bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		UoW:               uow,
		Transfers:         transfers,
		Audit:             audit,
		AllowSelfTransfer: allowSelfTransfer,
		Logger:            logger,
	}
}

// CreateTransfer atomically debits the sender, credits the receiver, and
// records the transfer.
//
// Failure modes: domain.ErrInvalidAmount for a non-positive or
// over-precise amount, domain.ErrAccountNotFound when either party does
// not exist (the sender is checked first), domain.ErrInsufficientBalance
// when the sender cannot cover the amount, and domain.ErrTransientStorage
// when the storage transaction could not be committed after retries. On
// any failure no balance is mutated and no record is written.
func (s *Service) CreateTransfer(ctx context.Context, input CreateTransferInput) (*domain.Transfer, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if input.SenderID == input.ReceiverID && !s.AllowSelfTransfer {
		return nil, domain.ErrSelfTransferNotAllowed
	}

	var created *domain.Transfer
	err := s.UoW.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		sender, receiver, err := lockParties(ctx, repos.Accounts, input.SenderID, input.ReceiverID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := sender.Debit(input.Amount, now); err != nil {
			return err
		}
		if err := receiver.Credit(input.Amount, now); err != nil {
			return err
		}

		if err := repos.Accounts.UpdateBalance(ctx, sender); err != nil {
			return err
		}
		if sender != receiver {
			if err := repos.Accounts.UpdateBalance(ctx, receiver); err != nil {
				return err
			}
		}

		record := &domain.Transfer{
			ID:          uuid.New(),
			SenderID:    input.SenderID,
			ReceiverID:  input.ReceiverID,
			Amount:      input.Amount,
			Description: input.Description,
			CreatedAt:   now,
		}
		if err := record.Validate(); err != nil {
			return err
		}
		if err := repos.Transfers.Create(ctx, record); err != nil {
			return err
		}

		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("transfer created",
		zap.String("transfer_id", created.ID.String()),
		zap.String("sender_id", created.SenderID.String()),
		zap.String("receiver_id", created.ReceiverID.String()),
		zap.String("amount", domain.FormatAmount(created.Amount)),
	)
	s.publishCreated(ctx, created)

	return created, nil
}

// GetTransfer retrieves a single transfer record.
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.Transfers.GetByID(ctx, id)
}

// ListTransfers retrieves transfer records matching the filter, newest first.
func (s *Service) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	return s.Transfers.List(ctx, filter)
}

func (s *Service) publishCreated(ctx context.Context, record *domain.Transfer) {
	event := domain.Event{
		Type:       domain.EventTransferCreated,
		TransferID: &record.ID,
		Amount:     domain.FormatAmount(record.Amount),
		OccurredAt: record.CreatedAt,
	}
	if err := s.Audit.Publish(ctx, event); err != nil {
		s.Logger.Warn("audit publish failed",
			zap.String("transfer_id", record.ID.String()), zap.Error(err))
	}
}

// lockParties acquires row locks on both accounts in ascending id order to
// avoid deadlocks between opposite concurrent transfers. Existence is
// reported sender-first: if both accounts are missing, the sender is the
// party named in the error.
func lockParties(
	ctx context.Context,
	accounts domain.AccountRepository,
	senderID, receiverID uuid.UUID,
) (sender, receiver *domain.Account, err error) {
	locked := make(map[uuid.UUID]*domain.Account, 2)
	missing := make(map[uuid.UUID]bool, 2)

	for _, id := range domain.LockOrder(senderID, receiverID) {
		account, err := accounts.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				missing[id] = true
				continue
			}
			return nil, nil, err
		}
		locked[id] = account
	}

	if missing[senderID] {
		return nil, nil, fmt.Errorf("%w: sender %s", domain.ErrAccountNotFound, senderID)
	}
	if missing[receiverID] {
		return nil, nil, fmt.Errorf("%w: receiver %s", domain.ErrAccountNotFound, receiverID)
	}

	return locked[senderID], locked[receiverID], nil
}
