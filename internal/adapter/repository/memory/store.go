// Package memory provides an in-memory implementation of the storage
// contracts. Commits are serialized by a store-wide mutex and applied
// all-or-nothing, which matches the transactional guarantee the engines
// rely on; it backs the unit and concurrency tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// Store holds committed state.
type Store struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*domain.Account
	transfers map[uuid.UUID]*domain.Transfer
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[uuid.UUID]*domain.Account),
		transfers: make(map[uuid.UUID]*domain.Transfer),
	}
}

// WithinTx implements domain.UnitOfWork. The closure runs against a
// snapshot of committed state; the snapshot replaces the committed state
// only when the closure succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &data{
		accounts:  make(map[uuid.UUID]*domain.Account, len(s.accounts)),
		transfers: make(map[uuid.UUID]*domain.Transfer, len(s.transfers)),
	}
	for id, account := range s.accounts {
		snapshot.accounts[id] = copyAccount(account)
	}
	for id, transfer := range s.transfers {
		snapshot.transfers[id] = copyTransfer(transfer)
	}

	repos := domain.Repositories{
		Accounts:  &accountRepo{d: snapshot},
		Transfers: &transferRepo{d: snapshot},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	s.accounts = snapshot.accounts
	s.transfers = snapshot.transfers
	return nil
}

// Accounts returns a repository over committed state.
func (s *Store) Accounts() domain.AccountRepository {
	return &committedAccounts{s: s}
}

// Transfers returns a repository over committed state.
func (s *Store) Transfers() domain.TransferRepository {
	return &committedTransfers{s: s}
}

type data struct {
	accounts  map[uuid.UUID]*domain.Account
	transfers map[uuid.UUID]*domain.Transfer
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyTransfer(t *domain.Transfer) *domain.Transfer {
	c := *t
	if t.ReversalReason != nil {
		reason := *t.ReversalReason
		c.ReversalReason = &reason
	}
	if t.ReversedAt != nil {
		at := *t.ReversedAt
		c.ReversedAt = &at
	}
	if t.OriginalTransferID != nil {
		id := *t.OriginalTransferID
		c.OriginalTransferID = &id
	}
	return &c
}

// accountRepo operates on a transaction snapshot.
type accountRepo struct {
	d *data
}

func (r *accountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	account, ok := r.d.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return copyAccount(account), nil
}

// GetForUpdate is equivalent to GetByID here: the store-wide mutex already
// serializes whole transactions.
func (r *accountRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *accountRepo) Create(_ context.Context, account *domain.Account) error {
	if _, exists := r.d.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	r.d.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountRepo) UpdateBalance(_ context.Context, account *domain.Account) error {
	if _, ok := r.d.accounts[account.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.ID)
	}
	r.d.accounts[account.ID] = copyAccount(account)
	return nil
}

// transferRepo operates on a transaction snapshot.
type transferRepo struct {
	d *data
}

func (r *transferRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, ok := r.d.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
	}
	return copyTransfer(transfer), nil
}

func (r *transferRepo) Create(_ context.Context, transfer *domain.Transfer) error {
	if _, exists := r.d.transfers[transfer.ID]; exists {
		return fmt.Errorf("transfer %s already exists", transfer.ID)
	}
	r.d.transfers[transfer.ID] = copyTransfer(transfer)
	return nil
}

func (r *transferRepo) MarkReversed(_ context.Context, transfer *domain.Transfer) error {
	stored, ok := r.d.transfers[transfer.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTransferNotFound, transfer.ID)
	}
	if stored.Reversed {
		return fmt.Errorf("%w: transfer %s", domain.ErrAlreadyReversed, transfer.ID)
	}
	r.d.transfers[transfer.ID] = copyTransfer(transfer)
	return nil
}

func (r *transferRepo) List(_ context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	matched := make([]*domain.Transfer, 0, len(r.d.transfers))
	for _, transfer := range r.d.transfers {
		if filter.AccountID != nil &&
			transfer.SenderID != *filter.AccountID && transfer.ReceiverID != *filter.AccountID {
			continue
		}
		if filter.Reversed != nil && transfer.Reversed != *filter.Reversed {
			continue
		}
		matched = append(matched, copyTransfer(transfer))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// committedAccounts reads and writes committed state directly, outside any
// unit of work.
type committedAccounts struct {
	s *Store
}

func (r *committedAccounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&accountRepo{d: &data{accounts: r.s.accounts}}).GetByID(ctx, id)
}

func (r *committedAccounts) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *committedAccounts) Create(ctx context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&accountRepo{d: &data{accounts: r.s.accounts}}).Create(ctx, account)
}

func (r *committedAccounts) UpdateBalance(ctx context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&accountRepo{d: &data{accounts: r.s.accounts}}).UpdateBalance(ctx, account)
}

// committedTransfers reads committed state directly.
type committedTransfers struct {
	s *Store
}

func (r *committedTransfers) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&transferRepo{d: &data{transfers: r.s.transfers}}).GetByID(ctx, id)
}

func (r *committedTransfers) Create(ctx context.Context, transfer *domain.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&transferRepo{d: &data{transfers: r.s.transfers}}).Create(ctx, transfer)
}

func (r *committedTransfers) MarkReversed(ctx context.Context, transfer *domain.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&transferRepo{d: &data{transfers: r.s.transfers}}).MarkReversed(ctx, transfer)
}

func (r *committedTransfers) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (&transferRepo{d: &data{transfers: r.s.transfers}}).List(ctx, filter)
}
