package depositservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/nowpay"
	"github.com/keybotdev/keybot/pkg/money"
	"go.uber.org/zap"
)

//go:generate mockgen -source=depositservice.go -destination=mock_depositservice.go -package=depositservice

type DepositRepo interface {
	Save(ctx context.Context, deposit *domain.Deposit) error
	AttachPayment(ctx context.Context, id uuid.UUID, externalID, payAddress string, payAmount float64) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Deposit, error)
	MarkConfirming(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, id uuid.UUID, actualUSD int64) (*domain.Deposit, error)
	MarkTerminalFailure(ctx context.Context, id uuid.UUID, status string) error
	FindRecent(ctx context.Context, limit int) ([]domain.Deposit, error)
}
type Gateway interface {
	CreatePayment(ctx context.Context, priceUSD int64, payCurrency, internalRef string) (*nowpay.Payment, error)
	PaymentStatus(ctx context.Context, externalID string) (*nowpay.Payment, error)
}
type Balance interface {
	Credit(ctx context.Context, telegramID int64, amount int64, description, refID string) (*domain.User, error)
}
type Notifier interface {
	NotifyUser(ctx context.Context, telegramID int64, text string)
}

type Service struct {
	depositRepo DepositRepo
	gateway     Gateway
	balance     Balance
	notifier    Notifier

	minUSD int64
	maxUSD int64
	expiry time.Duration
}

func New(depositRepo DepositRepo, gateway Gateway, balance Balance, notifier Notifier, minUSD, maxUSD int64, expiry time.Duration) *Service {
	return &Service{
		depositRepo: depositRepo,
		gateway:     gateway,
		balance:     balance,
		notifier:    notifier,
		minUSD:      minUSD,
		maxUSD:      maxUSD,
		expiry:      expiry,
	}
}

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrDepositNotFound  = errors.New("deposit not found")
	ErrProvider         = errors.New("payment provider unavailable")
	ErrAlreadyProcessed = errors.New("deposit already processed")
)

// Initiate opens a deposit for amountUSD (integer cents) and registers an
// invoice with the provider. The local row is written first: a deposit that
// never reached the provider keeps an empty external id and is visible for
// reconciliation.
func (s *Service) Initiate(ctx context.Context, telegramID int64, amountUSD int64, payCurrency string) (*domain.Deposit, error) {
	if amountUSD < s.minUSD*100 || amountUSD > s.maxUSD*100 {
		return nil, ErrInvalidAmount
	}

	deposit := &domain.Deposit{
		ID:          uuid.New(),
		TelegramID:  telegramID,
		PayCurrency: payCurrency,
		PriceUSD:    amountUSD,
		Status:      domain.DepositWaiting,
		ExpiresAt:   time.Now().Add(s.expiry),
	}
	if err := s.depositRepo.Save(ctx, deposit); err != nil {
		return nil, err
	}

	payment, err := s.gateway.CreatePayment(ctx, amountUSD, payCurrency, deposit.ID.String())
	if err != nil {
		zap.L().Error("invoice creation failed, deposit left waiting",
			zap.String("deposit_id", deposit.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	if err := s.depositRepo.AttachPayment(ctx, deposit.ID, payment.PaymentID.String(), payment.PayAddress, payment.PayAmount); err != nil {
		return nil, err
	}
	deposit.ExternalID = payment.PaymentID.String()
	deposit.PayAddress = payment.PayAddress
	deposit.PayAmount = payment.PayAmount

	return deposit, nil
}

// Notification is one provider callback, already signature-verified by the
// transport. OutcomeUSD is the settled amount in integer cents, zero when the
// provider omitted it.
type Notification struct {
	ExternalID string
	Status     string
	OrderID    string
	OutcomeUSD int64
}

// HandleNotification advances the deposit state machine from a provider
// callback. Replays of a terminal notification return ErrAlreadyProcessed and
// change nothing, so redelivery can never credit twice.
func (s *Service) HandleNotification(ctx context.Context, n *Notification) error {
	deposit, err := s.lookup(ctx, n)
	if err != nil {
		return err
	}

	switch n.Status {
	case nowpay.StatusConfirming, nowpay.StatusConfirmed, nowpay.StatusSending:
		if err := s.depositRepo.MarkConfirming(ctx, deposit.ID); err != nil {
			return err
		}
		if deposit.Status == domain.DepositWaiting {
			s.notifier.NotifyUser(ctx, deposit.TelegramID,
				fmt.Sprintf("Payment detected, waiting for confirmations (%s).", money.USD(deposit.PriceUSD)))
		}
		return nil

	case nowpay.StatusFinished:
		return s.finish(ctx, deposit, n.OutcomeUSD)

	case nowpay.StatusFailed, nowpay.StatusRefunded, nowpay.StatusExpired:
		status := domain.DepositFailed
		if n.Status == nowpay.StatusExpired {
			status = domain.DepositExpired
		}
		if err := s.depositRepo.MarkTerminalFailure(ctx, deposit.ID, status); err != nil {
			return err
		}
		s.notifier.NotifyUser(ctx, deposit.TelegramID,
			fmt.Sprintf("Your deposit of %s was not completed (%s).", money.USD(deposit.PriceUSD), n.Status))
		return nil

	default:
		zap.L().Info("deposit notification with no transition",
			zap.String("deposit_id", deposit.ID.String()), zap.String("status", n.Status))
		return nil
	}
}

// lookup resolves a notification to the local deposit. The external id is
// authoritative; order_id covers the window where the invoice existed but
// AttachPayment had not landed yet.
func (s *Service) lookup(ctx context.Context, n *Notification) (*domain.Deposit, error) {
	if n.ExternalID != "" {
		deposit, err := s.depositRepo.FindByExternalID(ctx, n.ExternalID)
		if err != nil {
			return nil, err
		}
		if deposit != nil {
			return deposit, nil
		}
	}

	if id, err := uuid.Parse(n.OrderID); err == nil {
		deposit, err := s.depositRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if deposit != nil {
			return deposit, nil
		}
	}

	return nil, ErrDepositNotFound
}

// finish credits the user exactly once. The repository's status guard decides
// the winner under concurrent delivery; the credit follows the guard, so a
// crash between them leaves a finished-but-uncredited deposit that is logged
// for manual reconciliation rather than a double credit.
func (s *Service) finish(ctx context.Context, deposit *domain.Deposit, outcomeUSD int64) error {
	actual := outcomeUSD
	if actual <= 0 {
		actual = deposit.PriceUSD
	}

	updated, err := s.depositRepo.Finish(ctx, deposit.ID, actual)
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrAlreadyProcessed
	}

	if _, err := s.balance.Credit(ctx, deposit.TelegramID, actual,
		"Deposit via "+deposit.PayCurrency, deposit.ID.String()); err != nil {
		zap.L().Error("deposit finished but credit failed, reconciliation gap",
			zap.String("deposit_id", deposit.ID.String()),
			zap.Int64("telegram_id", deposit.TelegramID),
			zap.Int64("amount", actual), zap.Error(err))
		return err
	}

	s.notifier.NotifyUser(ctx, deposit.TelegramID,
		fmt.Sprintf("Deposit of %s credited to your balance.", money.USD(actual)))
	return nil
}

type StatusInfo struct {
	Status          string
	AlreadyCredited bool
}

// CheckStatus serves the user's "check payment" button. It polls the provider
// and applies the same transitions a notification would, so a lost callback
// does not strand a paid deposit.
func (s *Service) CheckStatus(ctx context.Context, depositID uuid.UUID, requesterID int64) (*StatusInfo, error) {
	deposit, err := s.depositRepo.FindByID(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit == nil || deposit.TelegramID != requesterID {
		return nil, ErrDepositNotFound
	}

	switch deposit.Status {
	case domain.DepositFinished:
		return &StatusInfo{Status: domain.DepositFinished, AlreadyCredited: true}, nil
	case domain.DepositFailed, domain.DepositExpired:
		return &StatusInfo{Status: deposit.Status}, nil
	}

	if deposit.ExternalID == "" {
		return nil, ErrProvider
	}

	payment, err := s.gateway.PaymentStatus(ctx, deposit.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	switch payment.PaymentStatus {
	case nowpay.StatusFinished:
		err := s.finish(ctx, deposit, money.ToCents(payment.OutcomeAmount))
		if errors.Is(err, ErrAlreadyProcessed) {
			return &StatusInfo{Status: domain.DepositFinished, AlreadyCredited: true}, nil
		}
		if err != nil {
			return nil, err
		}
		return &StatusInfo{Status: domain.DepositFinished}, nil

	case nowpay.StatusConfirming, nowpay.StatusConfirmed, nowpay.StatusSending:
		if err := s.depositRepo.MarkConfirming(ctx, deposit.ID); err != nil {
			return nil, err
		}
		return &StatusInfo{Status: domain.DepositConfirming}, nil

	case nowpay.StatusFailed, nowpay.StatusRefunded:
		if err := s.depositRepo.MarkTerminalFailure(ctx, deposit.ID, domain.DepositFailed); err != nil {
			return nil, err
		}
		return &StatusInfo{Status: domain.DepositFailed}, nil

	case nowpay.StatusExpired:
		if err := s.depositRepo.MarkTerminalFailure(ctx, deposit.ID, domain.DepositExpired); err != nil {
			return nil, err
		}
		return &StatusInfo{Status: domain.DepositExpired}, nil
	}

	// Provider still waiting. The local deadline is advisory: a payment that
	// lands late is still honored through the notification path.
	if time.Now().After(deposit.ExpiresAt) {
		if err := s.depositRepo.MarkTerminalFailure(ctx, deposit.ID, domain.DepositExpired); err != nil {
			return nil, err
		}
		return &StatusInfo{Status: domain.DepositExpired}, nil
	}

	return &StatusInfo{Status: deposit.Status}, nil
}

func (s *Service) GetDeposit(ctx context.Context, depositID uuid.UUID, requesterID int64) (*domain.Deposit, error) {
	deposit, err := s.depositRepo.FindByID(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit == nil || deposit.TelegramID != requesterID {
		return nil, ErrDepositNotFound
	}
	return deposit, nil
}

func (s *Service) RecentDeposits(ctx context.Context, limit int) ([]domain.Deposit, error) {
	return s.depositRepo.FindRecent(ctx, limit)
}
