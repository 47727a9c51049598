package orderservice

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/pg"
	"go.uber.org/zap"
)

//go:generate mockgen -source=orderservice.go -destination=mock_orderservice.go -package=orderservice

type Inventory interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ReserveUnit(ctx context.Context, productID uuid.UUID, telegramID int64, orderID uuid.UUID) (*domain.CredentialUnit, error)
	ReleaseUnit(ctx context.Context, unitID uuid.UUID) error
}
type Balance interface {
	Debit(ctx context.Context, telegramID int64, amount int64, description, refID string) (*domain.User, error)
}
type OrderRepo interface {
	Save(ctx context.Context, order *domain.Order) error
	FindForUser(ctx context.Context, orderID uuid.UUID, telegramID int64) (*domain.Order, error)
	FindByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Order, error)
	Count(ctx context.Context) (int64, error)
	Revenue(ctx context.Context) (int64, error)
}
type RechargeRepo interface {
	Save(ctx context.Context, recharge *domain.Recharge) error
	Complete(ctx context.Context, id uuid.UUID) (*domain.Recharge, error)
	FindPending(ctx context.Context) ([]domain.Recharge, error)
}

type Service struct {
	inventory    Inventory
	balance      Balance
	orderRepo    OrderRepo
	rechargeRepo RechargeRepo
	txManager    pg.TXManager
}

func New(inventory Inventory, balance Balance, orderRepo OrderRepo, rechargeRepo RechargeRepo, txManager pg.TXManager) *Service {
	return &Service{
		inventory:    inventory,
		balance:      balance,
		orderRepo:    orderRepo,
		rechargeRepo: rechargeRepo,
		txManager:    txManager,
	}
}

var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrRechargeNotFound   = errors.New("recharge not found")
)

type PurchaseResult struct {
	Order  *domain.Order
	User   *domain.User
	Secret string
}

// Purchase runs the sale saga: reserve a unit, debit the buyer, finalize the
// order. Each step is individually atomic; there is no cross-step
// transaction, so a failed debit releases the reservation and a failed order
// insert is logged as a reconciliation gap against the ledger entry the debit
// already produced.
func (s *Service) Purchase(ctx context.Context, telegramID int64, productID uuid.UUID) (*PurchaseResult, error) {
	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}

	orderID := uuid.New()

	unit, err := s.inventory.ReserveUnit(ctx, productID, telegramID, orderID)
	if err != nil {
		return nil, err
	}

	user, err := s.balance.Debit(ctx, telegramID, product.Price, "Purchase: "+product.Name, orderID.String())
	if err != nil {
		if relErr := s.inventory.ReleaseUnit(ctx, unit.ID); relErr != nil {
			zap.L().Error("stranded credential unit: release after failed debit also failed",
				zap.String("unit_id", unit.ID.String()), zap.Error(relErr))
		}
		return nil, err
	}

	order := &domain.Order{
		ID:            orderID,
		TelegramID:    telegramID,
		ProductID:     productID,
		ProductName:   product.Name,
		AmountPaid:    product.Price,
		RechargePrice: product.RechargePrice,
		AccountEmail:  accountEmail(unit.Secret),
		CredentialID:  unit.ID,
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		zap.L().Error("order insert failed after debit, reconciliation gap",
			zap.String("order_id", orderID.String()), zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, err
	}

	return &PurchaseResult{Order: order, User: user, Secret: unit.Secret}, nil
}

// accountEmail derives the serviceable account identifier from a
// "user:password" secret.
func accountEmail(secret string) string {
	if i := strings.Index(secret, ":"); i > 0 {
		return secret[:i]
	}
	return secret
}

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID, telegramID int64) (*domain.Order, error) {
	order, err := s.orderRepo.FindForUser(ctx, orderID, telegramID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) Orders(ctx context.Context, telegramID int64) ([]domain.Order, error) {
	orders, err := s.orderRepo.FindByTelegramID(ctx, telegramID, 10)
	if err != nil {
		zap.L().Error("failed to get orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

// RequestRecharge debits the recharge price and records a pending request for
// an admin to fulfill. Debit and insert share one transaction: a failed insert
// rolls the debit back. The price snapshot on the order wins; an order written
// before recharge pricing existed falls back to the amount paid.
func (s *Service) RequestRecharge(ctx context.Context, telegramID int64, orderID uuid.UUID) (*domain.Recharge, error) {
	order, err := s.GetOrder(ctx, orderID, telegramID)
	if err != nil {
		return nil, err
	}

	price := order.RechargePrice
	if price == 0 {
		price = order.AmountPaid
	}

	recharge := &domain.Recharge{
		ID:           uuid.New(),
		TelegramID:   telegramID,
		OrderID:      orderID,
		AccountEmail: order.AccountEmail,
		Amount:       price,
		Status:       domain.RechargePending,
	}
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.balance.Debit(ctx, telegramID, price, "Recharge: "+order.ProductName, orderID.String()); err != nil {
			return err
		}
		return s.rechargeRepo.Save(ctx, recharge)
	})
	if err != nil {
		return nil, err
	}

	return recharge, nil
}

// CompleteRecharge moves a pending recharge to completed. Completing an
// already-completed or unknown recharge returns ErrRechargeNotFound and has
// no effect, so a double tap on the admin button cannot double-notify.
func (s *Service) CompleteRecharge(ctx context.Context, rechargeID uuid.UUID) (*domain.Recharge, error) {
	recharge, err := s.rechargeRepo.Complete(ctx, rechargeID)
	if err != nil {
		return nil, err
	}
	if recharge == nil {
		return nil, ErrRechargeNotFound
	}
	return recharge, nil
}

func (s *Service) PendingRecharges(ctx context.Context) ([]domain.Recharge, error) {
	return s.rechargeRepo.FindPending(ctx)
}

type Stats struct {
	OrderCount int64
	Revenue    int64
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.orderRepo.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{OrderCount: count, Revenue: revenue}, nil
}
