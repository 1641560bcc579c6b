package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// Service applies administrative credits: direct balance increases that
// are not modeled as transfers and write no ledger record. An audit event
// is emitted after commit.
type Service struct {
	UoW    domain.UnitOfWork
	Audit  domain.EventPublisher
	Logger *zap.Logger
}

// NewService creates a new credit Service instance.
func NewService(uow domain.UnitOfWork, audit domain.EventPublisher, logger *zap.Logger) *Service {
	return &Service{UoW: uow, Audit: audit, Logger: logger}
}

// IncreaseBalance atomically adds amount to the account's balance.
// Fails with domain.ErrInvalidAmount for a non-positive amount and
// domain.ErrAccountNotFound when the account does not exist.
func (s *Service) IncreaseBalance(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var credited *domain.Account
	err := s.UoW.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := account.Credit(amount, now); err != nil {
			return err
		}
		if err := repos.Accounts.UpdateBalance(ctx, account); err != nil {
			return err
		}

		credited = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("account credited",
		zap.String("account_id", credited.ID.String()),
		zap.String("amount", domain.FormatAmount(amount)),
		zap.String("balance", domain.FormatAmount(credited.Balance)),
	)

	event := domain.Event{
		Type:       domain.EventAccountCredited,
		AccountID:  &credited.ID,
		Amount:     domain.FormatAmount(amount),
		OccurredAt: credited.UpdatedAt,
	}
	if err := s.Audit.Publish(ctx, event); err != nil {
		s.Logger.Warn("audit publish failed",
			zap.String("account_id", credited.ID.String()), zap.Error(err))
	}

	return credited, nil
}
