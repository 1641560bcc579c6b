package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

const defaultListLimit = 50

const transferColumns = `
	id, sender_id, receiver_id, amount, description, created_at,
	reversed, reversal_reason, reversed_at, original_transfer_id
`

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	q querier
}

// NewTransferRepository creates a transfer repository over the pooled
// connection. Transaction-scoped instances are built by the unit of work.
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{q: db}
}

func (r *transferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	transfer, err := scanTransfer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}
		return nil, err
	}
	return transfer, nil
}

func (r *transferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (id, sender_id, receiver_id, amount, description, created_at, original_transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var originalID uuid.NullUUID
	if transfer.OriginalTransferID != nil {
		originalID = uuid.NullUUID{UUID: *transfer.OriginalTransferID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		transfer.ID,
		transfer.SenderID,
		transfer.ReceiverID,
		transfer.Amount,
		transfer.Description,
		transfer.CreatedAt,
		originalID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (r *transferRepository) MarkReversed(ctx context.Context, transfer *domain.Transfer) error {
	// The reversed = FALSE guard makes the transition first-writer-wins
	// even if a caller raced past the in-memory check.
	query := `
		UPDATE transfers
		SET reversed = TRUE, reversal_reason = $1, reversed_at = $2
		WHERE id = $3 AND reversed = FALSE
	`
	res, err := r.q.ExecContext(ctx, query, transfer.ReversalReason, transfer.ReversedAt, transfer.ID)
	if err != nil {
		return fmt.Errorf("failed to mark transfer reversed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		if _, lookupErr := r.GetByID(ctx, transfer.ID); lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("%w: transfer %s", domain.ErrAlreadyReversed, transfer.ID)
	}
	return nil
}

func (r *transferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers`
	args := make([]any, 0, 4)

	where := ""
	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		n := strconv.Itoa(len(args))
		where = " WHERE (sender_id = $" + n + " OR receiver_id = $" + n + ")"
	}
	if filter.Reversed != nil {
		args = append(args, *filter.Reversed)
		clause := " reversed = $" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE" + clause
		} else {
			where += " AND" + clause
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += where + " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return transfers, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTransfer.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	transfer := &domain.Transfer{}
	var (
		description    sql.NullString
		reversalReason sql.NullString
		reversedAt     sql.NullTime
		originalID     uuid.NullUUID
	)

	err := row.Scan(
		&transfer.ID,
		&transfer.SenderID,
		&transfer.ReceiverID,
		&transfer.Amount,
		&description,
		&transfer.CreatedAt,
		&transfer.Reversed,
		&reversalReason,
		&reversedAt,
		&originalID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	transfer.Description = description.String
	if reversalReason.Valid {
		transfer.ReversalReason = &reversalReason.String
	}
	if reversedAt.Valid {
		transfer.ReversedAt = &reversedAt.Time
	}
	if originalID.Valid {
		id := originalID.UUID
		transfer.OriginalTransferID = &id
	}
	return transfer, nil
}
