package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpavao/ledgerflow-backend/internal/adapter/repository/memory"
	"github.com/mpavao/ledgerflow-backend/internal/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository for testing
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockTransferRepository is a mock implementation of TransferRepository for testing
type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockTransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockTransferRepository) MarkReversed(ctx context.Context, transfer *domain.Transfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockTransferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transfer), args.Error(1)
}

// stubUnitOfWork runs the closure against fixed repositories without any
// real transaction.
type stubUnitOfWork struct {
	repos domain.Repositories
}

func (u *stubUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return fn(ctx, u.repos)
}

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

func newTestService(accounts domain.AccountRepository, transfers domain.TransferRepository) (*Service, *recordingPublisher) {
	publisher := &recordingPublisher{}
	uow := &stubUnitOfWork{repos: domain.Repositories{Accounts: accounts, Transfers: transfers}}
	service := NewService(uow, transfers, publisher, true, zap.NewNop())
	return service, publisher
}

func fundedAccount(balance string) *domain.Account {
	account := domain.NewAccount(time.Now())
	account.Balance = decimal.RequireFromString(balance)
	return account
}

func TestCreateTransfer_Success(t *testing.T) {
	ctx := context.Background()
	mockAccounts := new(MockAccountRepository)
	mockTransfers := new(MockTransferRepository)

	sender := fundedAccount("1000.00")
	receiver := fundedAccount("0.00")

	mockAccounts.On("GetForUpdate", ctx, sender.ID).Return(sender, nil)
	mockAccounts.On("GetForUpdate", ctx, receiver.ID).Return(receiver, nil)
	mockAccounts.On("UpdateBalance", ctx, mock.MatchedBy(func(a *domain.Account) bool {
		return a.ID == sender.ID && a.Balance.Equal(decimal.RequireFromString("900.00"))
	})).Return(nil)
	mockAccounts.On("UpdateBalance", ctx, mock.MatchedBy(func(a *domain.Account) bool {
		return a.ID == receiver.ID && a.Balance.Equal(decimal.RequireFromString("100.00"))
	})).Return(nil)
	mockTransfers.On("Create", ctx, mock.MatchedBy(func(record *domain.Transfer) bool {
		return record.SenderID == sender.ID &&
			record.ReceiverID == receiver.ID &&
			record.Amount.Equal(decimal.RequireFromString("100.00")) &&
			!record.Reversed &&
			record.OriginalTransferID == nil
	})).Return(nil)

	service, publisher := newTestService(mockAccounts, mockTransfers)

	record, err := service.CreateTransfer(ctx, CreateTransferInput{
		SenderID:    sender.ID,
		ReceiverID:  receiver.ID,
		Amount:      decimal.RequireFromString("100.00"),
		Description: "rent",
	})

	require.NoError(t, err)
	assert.Equal(t, "rent", record.Description)
	assert.False(t, record.CreatedAt.IsZero())
	mockAccounts.AssertExpectations(t)
	mockTransfers.AssertExpectations(t)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, domain.EventTransferCreated, publisher.events[0].Type)
	assert.Equal(t, "100.00", publisher.events[0].Amount)
}

func TestCreateTransfer_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	service, publisher := newTestService(new(MockAccountRepository), new(MockTransferRepository))

	for _, raw := range []string{"0", "-5.00", "1.999"} {
		_, err := service.CreateTransfer(ctx, CreateTransferInput{
			SenderID:   uuid.New(),
			ReceiverID: uuid.New(),
			Amount:     decimal.RequireFromString(raw),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", raw)
	}
	assert.Empty(t, publisher.events)
}

func TestCreateTransfer_SenderNotFound(t *testing.T) {
	ctx := context.Background()
	mockAccounts := new(MockAccountRepository)
	mockTransfers := new(MockTransferRepository)

	senderID := uuid.New()
	receiverID := uuid.New()
	// Both accounts missing: the sender must be the party reported.
	mockAccounts.On("GetForUpdate", ctx, senderID).Return(nil, domain.ErrAccountNotFound)
	mockAccounts.On("GetForUpdate", ctx, receiverID).Return(nil, domain.ErrAccountNotFound)

	service, _ := newTestService(mockAccounts, mockTransfers)

	_, err := service.CreateTransfer(ctx, CreateTransferInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "sender")
	mockTransfers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateTransfer_ReceiverNotFound(t *testing.T) {
	ctx := context.Background()
	mockAccounts := new(MockAccountRepository)
	mockTransfers := new(MockTransferRepository)

	sender := fundedAccount("100.00")
	receiverID := uuid.New()
	mockAccounts.On("GetForUpdate", ctx, sender.ID).Return(sender, nil)
	mockAccounts.On("GetForUpdate", ctx, receiverID).Return(nil, domain.ErrAccountNotFound)

	service, _ := newTestService(mockAccounts, mockTransfers)

	_, err := service.CreateTransfer(ctx, CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Amount:     decimal.RequireFromString("10.00"),
	})

	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "receiver")
}

func TestCreateTransfer_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	mockAccounts := new(MockAccountRepository)
	mockTransfers := new(MockTransferRepository)

	sender := fundedAccount("50.00")
	receiver := fundedAccount("0.00")
	mockAccounts.On("GetForUpdate", ctx, sender.ID).Return(sender, nil)
	mockAccounts.On("GetForUpdate", ctx, receiver.ID).Return(receiver, nil)

	service, publisher := newTestService(mockAccounts, mockTransfers)

	_, err := service.CreateTransfer(ctx, CreateTransferInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("100.00"),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	mockAccounts.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything)
	mockTransfers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, publisher.events)
}

func TestCreateTransfer_SelfTransferPolicy(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	input := CreateTransferInput{
		SenderID:   accountID,
		ReceiverID: accountID,
		Amount:     decimal.RequireFromString("10.00"),
	}

	// Disallowed by policy
	service, _ := newTestService(new(MockAccountRepository), new(MockTransferRepository))
	service.AllowSelfTransfer = false
	_, err := service.CreateTransfer(ctx, input)
	assert.ErrorIs(t, err, domain.ErrSelfTransferNotAllowed)

	// Allowed: the balance nets to zero but a record is still written
	store := memory.NewStore()
	self := fundedAccount("40.00")
	self.ID = accountID
	require.NoError(t, store.Accounts().Create(ctx, self))

	allowed := NewService(store, store.Transfers(), &recordingPublisher{}, true, zap.NewNop())
	record, err := allowed.CreateTransfer(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, accountID, record.SenderID)
	assert.Equal(t, accountID, record.ReceiverID)

	after, err := store.Accounts().GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", domain.FormatAmount(after.Balance))
}

func TestCreateTransfer_ConcurrentSpendIsExact(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	sender := fundedAccount("500.00")
	receiver := fundedAccount("0.00")
	require.NoError(t, store.Accounts().Create(ctx, sender))
	require.NoError(t, store.Accounts().Create(ctx, receiver))

	service := NewService(store, store.Transfers(), &recordingPublisher{}, true, zap.NewNop())

	// 10 concurrent transfers of 100.00 against a 500.00 balance: exactly
	// 5 must succeed and the rest fail with insufficient balance.
	const workers = 10
	amount := decimal.RequireFromString("100.00")

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = service.CreateTransfer(ctx, CreateTransferInput{
				SenderID:   sender.ID,
				ReceiverID: receiver.ID,
				Amount:     amount,
			})
		}(i)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)
		failed++
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, failed)

	senderAfter, err := store.Accounts().GetByID(ctx, sender.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", domain.FormatAmount(senderAfter.Balance))

	receiverAfter, err := store.Accounts().GetByID(ctx, receiver.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", domain.FormatAmount(receiverAfter.Balance))

	records, err := service.ListTransfers(ctx, domain.TransferFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestListTransfers_FiltersByAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	a := fundedAccount("100.00")
	b := fundedAccount("100.00")
	c := fundedAccount("100.00")
	for _, account := range []*domain.Account{a, b, c} {
		require.NoError(t, store.Accounts().Create(ctx, account))
	}

	service := NewService(store, store.Transfers(), &recordingPublisher{}, true, zap.NewNop())

	_, err := service.CreateTransfer(ctx, CreateTransferInput{SenderID: a.ID, ReceiverID: b.ID, Amount: decimal.RequireFromString("10.00")})
	require.NoError(t, err)
	_, err = service.CreateTransfer(ctx, CreateTransferInput{SenderID: b.ID, ReceiverID: c.ID, Amount: decimal.RequireFromString("10.00")})
	require.NoError(t, err)

	records, err := service.ListTransfers(ctx, domain.TransferFilter{AccountID: &a.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, a.ID, records[0].SenderID)

	records, err = service.ListTransfers(ctx, domain.TransferFilter{AccountID: &b.ID})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
