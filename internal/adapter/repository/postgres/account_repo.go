package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	q querier
}

// NewAccountRepository creates an account repository over the pooled
// connection. Transaction-scoped instances are built by the unit of work.
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{q: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	return r.scanAccount(r.q.QueryRowContext(ctx, query, id), id)
}

func (r *accountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	return r.scanAccount(r.q.QueryRowContext(ctx, query, id), id)
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.q.ExecContext(ctx, query,
		account.ID,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (r *accountRepository) UpdateBalance(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`
	res, err := r.q.ExecContext(ctx, query, account.Balance, account.UpdatedAt, account.ID)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.ID)
	}
	return nil
}

func (r *accountRepository) scanAccount(row *sql.Row, id uuid.UUID) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(&account.ID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return account, nil
}
