package inventoryservice

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"go.uber.org/zap"
)

//go:generate mockgen -source=inventoryservice.go -destination=mock_inventoryservice.go -package=inventoryservice

type CredentialRepo interface {
	Reserve(ctx context.Context, productID uuid.UUID, telegramID int64, orderID uuid.UUID) (*domain.CredentialUnit, error)
	Release(ctx context.Context, unitID uuid.UUID) error
	BulkInsert(ctx context.Context, productID uuid.UUID, secrets []string) (int, error)
	CountAvailable(ctx context.Context, productID uuid.UUID) (int64, error)
}
type ProductRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindActive(ctx context.Context) ([]domain.Product, error)
	FindAll(ctx context.Context) ([]domain.Product, error)
	Save(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Toggle(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementSold(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	credentialRepo CredentialRepo
	productRepo    ProductRepo
}

func New(credentialRepo CredentialRepo, productRepo ProductRepo) *Service {
	return &Service{
		credentialRepo: credentialRepo,
		productRepo:    productRepo,
	}
}

var (
	ErrOutOfStock      = errors.New("out of stock")
	ErrNoValidEntries  = errors.New("no valid entries")
	ErrProductNotFound = errors.New("product not found")
)

// ReserveUnit atomically claims one available unit for the product. The
// totalSold counter is incremented best-effort off the request path: a
// miscount there is a reporting defect, not a safety violation.
func (s *Service) ReserveUnit(ctx context.Context, productID uuid.UUID, telegramID int64, orderID uuid.UUID) (*domain.CredentialUnit, error) {
	unit, err := s.credentialRepo.Reserve(ctx, productID, telegramID, orderID)
	if err != nil {
		zap.L().Error("failed to reserve credential unit", zap.Error(err))
		return nil, err
	}
	if unit == nil {
		return nil, ErrOutOfStock
	}

	go func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.productRepo.IncrementSold(ctx, productID); err != nil {
			zap.L().Warn("totalSold increment failed", zap.String("product_id", productID.String()), zap.Error(err))
		}
	}()

	return unit, nil
}

// ReleaseUnit is the purchase saga's compensation: it returns a reserved unit
// to the available pool after a failed debit.
func (s *Service) ReleaseUnit(ctx context.Context, unitID uuid.UUID) error {
	if err := s.credentialRepo.Release(ctx, unitID); err != nil {
		zap.L().Error("failed to release credential unit", zap.String("unit_id", unitID.String()), zap.Error(err))
		return err
	}
	return nil
}

// StockCount is advisory; a reservation attempt is the source of truth.
func (s *Service) StockCount(ctx context.Context, productID uuid.UUID) (int64, error) {
	return s.credentialRepo.CountAvailable(ctx, productID)
}

// BulkAddUnits parses raw secrets, one per line, and persists the non-empty
// ones as available units.
func (s *Service) BulkAddUnits(ctx context.Context, productID uuid.UUID, raw string) (int, error) {
	var secrets []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		secrets = append(secrets, line)
	}
	if len(secrets) == 0 {
		return 0, ErrNoValidEntries
	}

	count, err := s.credentialRepo.BulkInsert(ctx, productID, secrets)
	if err != nil {
		zap.L().Error("failed to bulk insert credential units", zap.Error(err))
		return count, err
	}
	if count == 0 {
		return 0, ErrNoValidEntries
	}
	return count, nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *Service) ActiveProducts(ctx context.Context) ([]domain.Product, error) {
	return s.productRepo.FindActive(ctx)
}

func (s *Service) AllProducts(ctx context.Context) ([]domain.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, name, description string, price, rechargePrice int64) (*domain.Product, error) {
	if price < 0 || rechargePrice < 0 {
		return nil, errors.New("price must be non-negative")
	}
	if rechargePrice == 0 {
		rechargePrice = price
	}
	product := &domain.Product{
		ID:            uuid.New(),
		Name:          name,
		Description:   description,
		Price:         price,
		RechargePrice: rechargePrice,
	}
	return s.productRepo.Save(ctx, product)
}

func (s *Service) ToggleProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.productRepo.Toggle(ctx, id)
}
