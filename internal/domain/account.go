package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents an account entity in the domain layer.
// Balance is a fixed-precision decimal (book value in cents scale) and is
// mutated only through Credit and Debit.
type Account struct {
	ID        uuid.UUID
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates a freshly provisioned account with a zero balance.
func NewAccount(now time.Time) *Account {
	return &Account{
		ID:        uuid.New(),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit adds amount to the balance.
// Returns an error if the amount is not strictly positive.
func (a *Account) Credit(amount decimal.Decimal, now time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now
	return nil
}

// Debit subtracts amount from the balance.
// Returns ErrInsufficientBalance if the subtraction would drive the
// balance below zero; the balance is left untouched in that case.
func (a *Account) Debit(amount decimal.Decimal, now time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientBalance, FormatAmount(a.Balance), FormatAmount(amount))
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = now
	return nil
}
