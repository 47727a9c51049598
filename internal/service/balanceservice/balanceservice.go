package balanceservice

import (
	"context"
	"errors"

	"github.com/keybotdev/keybot/internal/domain"
	"go.uber.org/zap"
)

//go:generate mockgen -source=balanceservice.go -destination=mock_balanceservice.go -package=balanceservice

type UserRepo interface {
	CreditBalance(ctx context.Context, telegramID int64, amount int64) (*domain.User, error)
	DebitBalance(ctx context.Context, telegramID int64, amount int64) (*domain.User, error)
}
type TransactionRepo interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	FindRecentByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error)
}

type Service struct {
	userRepo UserRepo
	txRepo   TransactionRepo
}

func New(userRepo UserRepo, txRepo TransactionRepo) *Service {
	return &Service{
		userRepo: userRepo,
		txRepo:   txRepo,
	}
}

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
)

// Credit adds amount to the user's balance and appends a ledger entry with
// the before/after snapshots the atomic mutation returned. A failed ledger
// append is logged as a reconciliation gap, never rolled back: the balance
// mutation is the source of truth.
func (s *Service) Credit(ctx context.Context, telegramID int64, amount int64, description, refID string) (*domain.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.CreditBalance(ctx, telegramID, amount)
	if err != nil {
		zap.L().Error("failed to credit balance", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	entry := &domain.Transaction{
		TelegramID:    telegramID,
		Kind:          domain.TxKindDeposit,
		Amount:        amount,
		BalanceBefore: user.Balance - amount,
		BalanceAfter:  user.Balance,
		Description:   description,
		RefID:         refID,
	}
	if err := s.txRepo.Append(ctx, entry); err != nil {
		zap.L().Error("ledger append failed after credit, reconciliation gap",
			zap.Int64("telegram_id", telegramID), zap.Int64("amount", amount), zap.Error(err))
	}

	return user, nil
}

// Debit subtracts amount from the user's balance. The balance >= amount guard
// and the mutation are one atomic statement in the repository; a missed guard
// surfaces here as ErrInsufficientBalance with no partial debit.
func (s *Service) Debit(ctx context.Context, telegramID int64, amount int64, description, refID string) (*domain.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.DebitBalance(ctx, telegramID, amount)
	if err != nil {
		zap.L().Error("failed to debit balance", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, ErrInsufficientBalance
	}

	entry := &domain.Transaction{
		TelegramID:    telegramID,
		Kind:          domain.TxKindPurchase,
		Amount:        -amount,
		BalanceBefore: user.Balance + amount,
		BalanceAfter:  user.Balance,
		Description:   description,
		RefID:         refID,
	}
	if err := s.txRepo.Append(ctx, entry); err != nil {
		zap.L().Error("ledger append failed after debit, reconciliation gap",
			zap.Int64("telegram_id", telegramID), zap.Int64("amount", amount), zap.Error(err))
	}

	return user, nil
}

func (s *Service) RecentTransactions(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error) {
	txs, err := s.txRepo.FindRecentByTelegramID(ctx, telegramID, limit)
	if err != nil {
		zap.L().Error("failed to fetch transactions", zap.Error(err))
		return nil, err
	}
	return txs, nil
}
