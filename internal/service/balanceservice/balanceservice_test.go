package balanceservice

import (
	"context"
	"errors"
	"testing"

	"github.com/keybotdev/keybot/internal/domain"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func NewMock(t *testing.T) (*Service, *MockUserRepo, *MockTransactionRepo) {
	ctrl := gomock.NewController(t)
	userRepo := NewMockUserRepo(ctrl)
	txRepo := NewMockTransactionRepo(ctrl)
	service := New(userRepo, txRepo)
	defer ctrl.Finish()
	return service, userRepo, txRepo
}

func TestCredit(t *testing.T) {
	service, userRepo, txRepo := NewMock(t)

	tests := []struct {
		name            string
		amount          int64
		prepareMock     func()
		expectedBalance int64
		expectedError   error
	}{
		{
			name:   "Successful credit appends matching ledger entry",
			amount: 1000,
			prepareMock: func() {
				userRepo.EXPECT().CreditBalance(gomock.Any(), int64(42), int64(1000)).Return(&domain.User{
					TelegramID:     42,
					Balance:        1500,
					TotalDeposited: 1000,
				}, nil)
				txRepo.EXPECT().Append(gomock.Any(), &domain.Transaction{
					TelegramID:    42,
					Kind:          domain.TxKindDeposit,
					Amount:        1000,
					BalanceBefore: 500,
					BalanceAfter:  1500,
					Description:   "Crypto deposit (BTC)",
					RefID:         "dep-1",
				}).Return(nil)
			},
			expectedBalance: 1500,
		},
		{
			name:          "Zero amount rejected",
			amount:        0,
			expectedError: ErrInvalidAmount,
		},
		{
			name:          "Negative amount rejected",
			amount:        -100,
			expectedError: ErrInvalidAmount,
		},
		{
			name:   "Unknown user",
			amount: 1000,
			prepareMock: func() {
				userRepo.EXPECT().CreditBalance(gomock.Any(), int64(42), int64(1000)).Return(nil, nil)
			},
			expectedError: ErrUserNotFound,
		},
		{
			name:   "Ledger append failure does not roll back the credit",
			amount: 1000,
			prepareMock: func() {
				userRepo.EXPECT().CreditBalance(gomock.Any(), int64(42), int64(1000)).Return(&domain.User{
					TelegramID: 42,
					Balance:    1000,
				}, nil)
				txRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("insert failed"))
			},
			expectedBalance: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			user, err := service.Credit(context.Background(), 42, tt.amount, "Crypto deposit (BTC)", "dep-1")
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedBalance, user.Balance)
			}
		})
	}
}

func TestDebit(t *testing.T) {
	service, userRepo, txRepo := NewMock(t)

	tests := []struct {
		name            string
		amount          int64
		prepareMock     func()
		expectedBalance int64
		expectedError   error
	}{
		{
			name:   "Successful debit appends negative ledger entry",
			amount: 999,
			prepareMock: func() {
				userRepo.EXPECT().DebitBalance(gomock.Any(), int64(42), int64(999)).Return(&domain.User{
					TelegramID: 42,
					Balance:    1,
					TotalSpent: 999,
				}, nil)
				txRepo.EXPECT().Append(gomock.Any(), &domain.Transaction{
					TelegramID:    42,
					Kind:          domain.TxKindPurchase,
					Amount:        -999,
					BalanceBefore: 1000,
					BalanceAfter:  1,
					Description:   "Purchase: Netflix 1y",
					RefID:         "order-1",
				}).Return(nil)
			},
			expectedBalance: 1,
		},
		{
			name:   "Guard miss surfaces insufficient balance, no partial debit",
			amount: 999,
			prepareMock: func() {
				userRepo.EXPECT().DebitBalance(gomock.Any(), int64(42), int64(999)).Return(nil, nil)
			},
			expectedError: ErrInsufficientBalance,
		},
		{
			name:          "Non-positive amount rejected",
			amount:        0,
			expectedError: ErrInvalidAmount,
		},
		{
			name:   "Repo error propagates",
			amount: 999,
			prepareMock: func() {
				userRepo.EXPECT().DebitBalance(gomock.Any(), int64(42), int64(999)).Return(nil, errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			user, err := service.Debit(context.Background(), 42, tt.amount, "Purchase: Netflix 1y", "order-1")
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedBalance, user.Balance)
			}
		})
	}
}

func TestRecentTransactions(t *testing.T) {
	service, _, txRepo := NewMock(t)

	expected := []domain.Transaction{
		{TelegramID: 42, Kind: domain.TxKindDeposit, Amount: 1000, BalanceBefore: 0, BalanceAfter: 1000},
		{TelegramID: 42, Kind: domain.TxKindPurchase, Amount: -400, BalanceBefore: 1000, BalanceAfter: 600},
	}
	txRepo.EXPECT().FindRecentByTelegramID(gomock.Any(), int64(42), 10).Return(expected, nil)

	txs, err := service.RecentTransactions(context.Background(), 42, 10)
	assert.NoError(t, err)
	assert.Equal(t, expected, txs)

	// Consecutive snapshots chain together: after of entry N equals before of
	// entry N+1 when replayed in chronological order.
	assert.Equal(t, txs[0].BalanceAfter, txs[1].BalanceBefore)
}
