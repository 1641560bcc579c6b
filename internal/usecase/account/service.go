package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// Service provisions and reads accounts. Accounts start with a zero
// balance; only the transfer, reversal, and credit engines ever mutate
// the balance afterwards.
type Service struct {
	Accounts domain.AccountRepository
	Logger   *zap.Logger
}

// NewService creates a new account Service instance.
func NewService(accounts domain.AccountRepository, logger *zap.Logger) *Service {
	return &Service{Accounts: accounts, Logger: logger}
}

// CreateAccount provisions a new account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context) (*domain.Account, error) {
	acc := domain.NewAccount(time.Now().UTC())
	if err := s.Accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	s.Logger.Info("account created", zap.String("account_id", acc.ID.String()))
	return acc, nil
}

// GetAccount retrieves an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.Accounts.GetByID(ctx, id)
}
