package reversal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/adapter/repository/memory"
	"github.com/mpavao/ledgerflow-backend/internal/domain"
	"github.com/mpavao/ledgerflow-backend/internal/usecase/transfer"
)

// recordingPublisher captures published audit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	store    *memory.Store
	transfer *transfer.Service
	reversal *Service
	events   *recordingPublisher
}

func newFixture() *fixture {
	store := memory.NewStore()
	events := &recordingPublisher{}
	return &fixture{
		store:    store,
		transfer: transfer.NewService(store, store.Transfers(), events, true, zap.NewNop()),
		reversal: NewService(store, events, zap.NewNop()),
		events:   events,
	}
}

func (f *fixture) createAccount(t *testing.T, balance string) *domain.Account {
	t.Helper()
	account := domain.NewAccount(time.Now())
	account.Balance = decimal.RequireFromString(balance)
	require.NoError(t, f.store.Accounts().Create(context.Background(), account))
	return account
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	account, err := f.store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return domain.FormatAmount(account.Balance)
}

func TestReverseTransfer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sender := f.createAccount(t, "1000.00")
	receiver := f.createAccount(t, "0.00")

	original, err := f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "900.00", f.balance(t, sender.ID))
	assert.Equal(t, "100.00", f.balance(t, receiver.ID))

	reversalRecord, err := f.reversal.ReverseTransfer(ctx, original.ID, "mistake")
	require.NoError(t, err)

	// Balances restored exactly
	assert.Equal(t, "1000.00", f.balance(t, sender.ID))
	assert.Equal(t, "0.00", f.balance(t, receiver.ID))

	// The reversal record swaps the parties and links to the original
	assert.Equal(t, receiver.ID, reversalRecord.SenderID)
	assert.Equal(t, sender.ID, reversalRecord.ReceiverID)
	assert.True(t, reversalRecord.Amount.Equal(original.Amount))
	require.NotNil(t, reversalRecord.OriginalTransferID)
	assert.Equal(t, original.ID, *reversalRecord.OriginalTransferID)
	assert.Contains(t, reversalRecord.Description, original.ID.String())
	assert.Contains(t, reversalRecord.Description, "mistake")

	// The original carries the one-time reversal marking
	stored, err := f.store.Transfers().GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.True(t, stored.Reversed)
	require.NotNil(t, stored.ReversalReason)
	assert.Equal(t, "mistake", *stored.ReversalReason)
	assert.NotNil(t, stored.ReversedAt)
}

func TestReverseTransfer_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.reversal.ReverseTransfer(context.Background(), uuid.New(), "mistake")
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestReverseTransfer_AlreadyReversed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sender := f.createAccount(t, "500.00")
	receiver := f.createAccount(t, "0.00")
	original, err := f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)

	_, err = f.reversal.ReverseTransfer(ctx, original.ID, "first")
	require.NoError(t, err)

	_, err = f.reversal.ReverseTransfer(ctx, original.ID, "second")
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	// Balances after the failed second attempt equal those after the first
	assert.Equal(t, "500.00", f.balance(t, sender.ID))
	assert.Equal(t, "0.00", f.balance(t, receiver.ID))
}

func TestReverseTransfer_ReceiverSpentTheFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sender := f.createAccount(t, "200.00")
	receiver := f.createAccount(t, "0.00")
	other := f.createAccount(t, "0.00")

	original, err := f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	// Receiver moves the funds on before the reversal arrives
	_, err = f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   receiver.ID,
		ReceiverID: other.ID,
		Amount:     decimal.RequireFromString("80.00"),
	})
	require.NoError(t, err)

	_, err = f.reversal.ReverseTransfer(ctx, original.ID, "mistake")
	require.ErrorIs(t, err, domain.ErrInsufficientBalanceForReversal)

	// Nothing moved and the original is still not reversed
	assert.Equal(t, "100.00", f.balance(t, sender.ID))
	assert.Equal(t, "20.00", f.balance(t, receiver.ID))
	stored, err := f.store.Transfers().GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.False(t, stored.Reversed)
}

func TestReverseTransfer_ReversalOfReversal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sender := f.createAccount(t, "300.00")
	receiver := f.createAccount(t, "0.00")
	original, err := f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	firstReversal, err := f.reversal.ReverseTransfer(ctx, original.ID, "mistake")
	require.NoError(t, err)
	assert.Equal(t, "300.00", f.balance(t, sender.ID))

	// A reversal record is an ordinary transfer, eligible for its own reversal
	secondReversal, err := f.reversal.ReverseTransfer(ctx, firstReversal.ID, "the reversal was the mistake")
	require.NoError(t, err)
	assert.Equal(t, "200.00", f.balance(t, sender.ID))
	assert.Equal(t, "100.00", f.balance(t, receiver.ID))
	require.NotNil(t, secondReversal.OriginalTransferID)
	assert.Equal(t, firstReversal.ID, *secondReversal.OriginalTransferID)
}

func TestReverseTransfer_ConcurrentOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sender := f.createAccount(t, "100.00")
	receiver := f.createAccount(t, "0.00")
	original, err := f.transfer.CreateTransfer(ctx, transfer.CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.reversal.ReverseTransfer(ctx, original.ID, "race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyReversed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "100.00", f.balance(t, sender.ID))
	assert.Equal(t, "0.00", f.balance(t, receiver.ID))

	events := 0
	for _, event := range f.events.events {
		if event.Type == domain.EventTransferReversed {
			events++
		}
	}
	assert.Equal(t, 1, events)
}
