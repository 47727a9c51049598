package inventoryservice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func NewMock(t *testing.T) (*Service, *MockCredentialRepo, *MockProductRepo) {
	ctrl := gomock.NewController(t)
	credentialRepo := NewMockCredentialRepo(ctrl)
	productRepo := NewMockProductRepo(ctrl)
	service := New(credentialRepo, productRepo)
	defer ctrl.Finish()
	return service, credentialRepo, productRepo
}

func TestReserveUnit(t *testing.T) {
	service, credentialRepo, productRepo := NewMock(t)

	productID := uuid.New()
	orderID := uuid.New()
	soldTo := int64(42)

	tests := []struct {
		name          string
		prepareMock   func()
		expectedError error
	}{
		{
			name: "Successful reservation",
			prepareMock: func() {
				credentialRepo.EXPECT().Reserve(gomock.Any(), productID, int64(42), orderID).Return(&domain.CredentialUnit{
					ID:        uuid.New(),
					ProductID: productID,
					Secret:    "user@mail.com:hunter2",
					Status:    domain.UnitSold,
					SoldTo:    &soldTo,
				}, nil)
				// Counter increment runs off the request path.
				productRepo.EXPECT().IncrementSold(gomock.Any(), productID).Return(nil).AnyTimes()
			},
		},
		{
			name: "No available unit maps to OutOfStock",
			prepareMock: func() {
				credentialRepo.EXPECT().Reserve(gomock.Any(), productID, int64(42), orderID).Return(nil, nil)
			},
			expectedError: ErrOutOfStock,
		},
		{
			name: "Repo error propagates",
			prepareMock: func() {
				credentialRepo.EXPECT().Reserve(gomock.Any(), productID, int64(42), orderID).Return(nil, errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			unit, err := service.ReserveUnit(context.Background(), productID, 42, orderID)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
				assert.Nil(t, unit)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, domain.UnitSold, unit.Status)
				assert.Equal(t, int64(42), *unit.SoldTo)
			}
		})
	}
}

func TestBulkAddUnits(t *testing.T) {
	service, credentialRepo, _ := NewMock(t)

	productID := uuid.New()

	tests := []struct {
		name          string
		raw           string
		prepareMock   func()
		expectedCount int
		expectedError error
	}{
		{
			name: "Lines trimmed and empties dropped",
			raw:  "a@mail.com:pw1\n\n  b@mail.com:pw2  \n",
			prepareMock: func() {
				credentialRepo.EXPECT().BulkInsert(gomock.Any(), productID, []string{"a@mail.com:pw1", "b@mail.com:pw2"}).Return(2, nil)
			},
			expectedCount: 2,
		},
		{
			name:          "Only whitespace yields NoValidEntries",
			raw:           "  \n\t\n",
			expectedError: ErrNoValidEntries,
		},
		{
			name: "All duplicates yields NoValidEntries",
			raw:  "a@mail.com:pw1",
			prepareMock: func() {
				credentialRepo.EXPECT().BulkInsert(gomock.Any(), productID, []string{"a@mail.com:pw1"}).Return(0, nil)
			},
			expectedError: ErrNoValidEntries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			count, err := service.BulkAddUnits(context.Background(), productID, tt.raw)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedCount, count)
			}
		})
	}
}

func TestReleaseUnit(t *testing.T) {
	service, credentialRepo, _ := NewMock(t)

	unitID := uuid.New()
	credentialRepo.EXPECT().Release(gomock.Any(), unitID).Return(nil)
	assert.NoError(t, service.ReleaseUnit(context.Background(), unitID))
}

func TestGetProduct(t *testing.T) {
	service, _, productRepo := NewMock(t)

	id := uuid.New()
	productRepo.EXPECT().FindByID(gomock.Any(), id).Return(nil, nil)

	product, err := service.GetProduct(context.Background(), id)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Nil(t, product)
}

func TestCreateProduct(t *testing.T) {
	service, _, productRepo := NewMock(t)

	productRepo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *domain.Product) (*domain.Product, error) {
			return p, nil
		})

	// Recharge price falls back to the sale price when unset.
	product, err := service.CreateProduct(context.Background(), "Netflix 1y", "Shared account", 999, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(999), product.RechargePrice)
	assert.NotEqual(t, uuid.Nil, product.ID)
}
