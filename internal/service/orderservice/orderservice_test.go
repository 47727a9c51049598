package orderservice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/pg"
	"github.com/keybotdev/keybot/internal/service/balanceservice"
	"github.com/keybotdev/keybot/internal/service/inventoryservice"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func NewMock(t *testing.T) (*Service, *MockInventory, *MockBalance, *MockOrderRepo, *MockRechargeRepo) {
	ctrl := gomock.NewController(t)
	inventory := NewMockInventory(ctrl)
	balance := NewMockBalance(ctrl)
	orderRepo := NewMockOrderRepo(ctrl)
	rechargeRepo := NewMockRechargeRepo(ctrl)
	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	service := New(inventory, balance, orderRepo, rechargeRepo, txManager)
	defer ctrl.Finish()
	return service, inventory, balance, orderRepo, rechargeRepo
}

func TestPurchase(t *testing.T) {
	service, inventory, balance, orderRepo, _ := NewMock(t)

	productID := uuid.New()
	unitID := uuid.New()
	telegramID := int64(42)

	product := &domain.Product{
		ID:            productID,
		Name:          "Netflix 1y",
		Price:         1500,
		RechargePrice: 500,
		IsActive:      true,
	}
	unit := &domain.CredentialUnit{
		ID:        unitID,
		ProductID: productID,
		Secret:    "user@mail.com:hunter2",
		Status:    domain.UnitSold,
	}

	tests := []struct {
		name          string
		prepareMock   func()
		expectedError error
	}{
		{
			name: "Successful purchase",
			prepareMock: func() {
				inventory.EXPECT().GetProduct(gomock.Any(), productID).Return(product, nil)
				inventory.EXPECT().ReserveUnit(gomock.Any(), productID, telegramID, gomock.Any()).Return(unit, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(1500), "Purchase: Netflix 1y", gomock.Any()).
					Return(&domain.User{TelegramID: telegramID, Balance: 500}, nil)
				orderRepo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, order *domain.Order) error {
						assert.Equal(t, telegramID, order.TelegramID)
						assert.Equal(t, int64(1500), order.AmountPaid)
						assert.Equal(t, int64(500), order.RechargePrice)
						assert.Equal(t, "user@mail.com", order.AccountEmail)
						assert.Equal(t, unitID, order.CredentialID)
						return nil
					})
			},
		},
		{
			name: "Inactive product rejected before reservation",
			prepareMock: func() {
				inactive := *product
				inactive.IsActive = false
				inventory.EXPECT().GetProduct(gomock.Any(), productID).Return(&inactive, nil)
			},
			expectedError: ErrProductUnavailable,
		},
		{
			name: "Out of stock propagates",
			prepareMock: func() {
				inventory.EXPECT().GetProduct(gomock.Any(), productID).Return(product, nil)
				inventory.EXPECT().ReserveUnit(gomock.Any(), productID, telegramID, gomock.Any()).
					Return(nil, inventoryservice.ErrOutOfStock)
			},
			expectedError: inventoryservice.ErrOutOfStock,
		},
		{
			name: "Failed debit releases the reserved unit",
			prepareMock: func() {
				inventory.EXPECT().GetProduct(gomock.Any(), productID).Return(product, nil)
				inventory.EXPECT().ReserveUnit(gomock.Any(), productID, telegramID, gomock.Any()).Return(unit, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(1500), "Purchase: Netflix 1y", gomock.Any()).
					Return(nil, balanceservice.ErrInsufficientBalance)
				inventory.EXPECT().ReleaseUnit(gomock.Any(), unitID).Return(nil)
			},
			expectedError: balanceservice.ErrInsufficientBalance,
		},
		{
			name: "Order insert failure surfaces after debit",
			prepareMock: func() {
				inventory.EXPECT().GetProduct(gomock.Any(), productID).Return(product, nil)
				inventory.EXPECT().ReserveUnit(gomock.Any(), productID, telegramID, gomock.Any()).Return(unit, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(1500), "Purchase: Netflix 1y", gomock.Any()).
					Return(&domain.User{TelegramID: telegramID}, nil)
				orderRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			result, err := service.Purchase(context.Background(), telegramID, productID)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "user@mail.com:hunter2", result.Secret)
				assert.Equal(t, int64(500), result.User.Balance)
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	service, _, _, orderRepo, _ := NewMock(t)

	orderID := uuid.New()
	orderRepo.EXPECT().FindForUser(gomock.Any(), orderID, int64(42)).Return(nil, nil)

	order, err := service.GetOrder(context.Background(), orderID, 42)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, order)
}

func TestRequestRecharge(t *testing.T) {
	service, _, balance, orderRepo, rechargeRepo := NewMock(t)

	orderID := uuid.New()
	telegramID := int64(42)

	tests := []struct {
		name           string
		order          *domain.Order
		prepareMock    func(order *domain.Order)
		expectedAmount int64
		expectedError  error
	}{
		{
			name: "Recharge price snapshot wins",
			order: &domain.Order{
				ID: orderID, TelegramID: telegramID, ProductName: "Netflix 1y",
				AmountPaid: 1500, RechargePrice: 500, AccountEmail: "user@mail.com",
			},
			prepareMock: func(order *domain.Order) {
				orderRepo.EXPECT().FindForUser(gomock.Any(), orderID, telegramID).Return(order, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(500), "Recharge: Netflix 1y", orderID.String()).
					Return(&domain.User{TelegramID: telegramID}, nil)
				rechargeRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedAmount: 500,
		},
		{
			name: "Missing snapshot falls back to amount paid",
			order: &domain.Order{
				ID: orderID, TelegramID: telegramID, ProductName: "Netflix 1y",
				AmountPaid: 1500, AccountEmail: "user@mail.com",
			},
			prepareMock: func(order *domain.Order) {
				orderRepo.EXPECT().FindForUser(gomock.Any(), orderID, telegramID).Return(order, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(1500), "Recharge: Netflix 1y", orderID.String()).
					Return(&domain.User{TelegramID: telegramID}, nil)
				rechargeRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedAmount: 1500,
		},
		{
			name:  "Foreign order invisible",
			order: nil,
			prepareMock: func(_ *domain.Order) {
				orderRepo.EXPECT().FindForUser(gomock.Any(), orderID, telegramID).Return(nil, nil)
			},
			expectedError: ErrOrderNotFound,
		},
		{
			name: "Insufficient balance leaves no pending recharge",
			order: &domain.Order{
				ID: orderID, TelegramID: telegramID, ProductName: "Netflix 1y",
				AmountPaid: 1500, RechargePrice: 500,
			},
			prepareMock: func(order *domain.Order) {
				orderRepo.EXPECT().FindForUser(gomock.Any(), orderID, telegramID).Return(order, nil)
				balance.EXPECT().Debit(gomock.Any(), telegramID, int64(500), "Recharge: Netflix 1y", orderID.String()).
					Return(nil, balanceservice.ErrInsufficientBalance)
			},
			expectedError: balanceservice.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock(tt.order)

			recharge, err := service.RequestRecharge(context.Background(), telegramID, orderID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, recharge)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedAmount, recharge.Amount)
				assert.Equal(t, domain.RechargePending, recharge.Status)
				assert.Equal(t, orderID, recharge.OrderID)
			}
		})
	}
}

func TestCompleteRecharge(t *testing.T) {
	service, _, _, _, rechargeRepo := NewMock(t)

	rechargeID := uuid.New()

	tests := []struct {
		name          string
		prepareMock   func()
		expectedError error
	}{
		{
			name: "Pending recharge completed",
			prepareMock: func() {
				rechargeRepo.EXPECT().Complete(gomock.Any(), rechargeID).Return(&domain.Recharge{
					ID:     rechargeID,
					Status: domain.RechargeCompleted,
				}, nil)
			},
		},
		{
			name: "Second completion is a no-op",
			prepareMock: func() {
				rechargeRepo.EXPECT().Complete(gomock.Any(), rechargeID).Return(nil, nil)
			},
			expectedError: ErrRechargeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			recharge, err := service.CompleteRecharge(context.Background(), rechargeID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, recharge)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, domain.RechargeCompleted, recharge.Status)
			}
		})
	}
}

func TestStats(t *testing.T) {
	service, _, _, orderRepo, _ := NewMock(t)

	orderRepo.EXPECT().Count(gomock.Any()).Return(int64(7), nil)
	orderRepo.EXPECT().Revenue(gomock.Any()).Return(int64(10500), nil)

	stats, err := service.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(7), stats.OrderCount)
	assert.Equal(t, int64(10500), stats.Revenue)
}
