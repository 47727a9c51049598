package userrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	defer mockDB.Close()

	return repo, mockDB
}

func userRows(balance, deposited, spent int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "telegram_id", "first_name", "username",
		"balance", "total_deposited", "total_spent", "is_banned", "created_at",
	}).AddRow(1, int64(42), "Alice", "alice", balance, deposited, spent, false, time.Now())
}

func TestRepository_Upsert(t *testing.T) {
	repo, mock := NewMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (telegram_id, first_name, username)")).
		WithArgs(int64(42), "Alice", "alice").
		WillReturnRows(userRows(0, 0, 0))

	user, err := repo.Upsert(context.Background(), 42, "Alice", "alice")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), user.TelegramID)
	assert.Equal(t, int64(0), user.Balance)
}

func TestRepository_CreditBalance(t *testing.T) {
	repo, mock := NewMock(t)

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		result    *domain.User
	}{
		{
			name: "Balance credited",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("SET balance = balance + $2, total_deposited = total_deposited + $2")).
					WithArgs(int64(42), int64(1000)).
					WillReturnRows(userRows(1000, 1000, 0))
			},
			result: &domain.User{TelegramID: 42, Balance: 1000, TotalDeposited: 1000},
		},
		{
			name: "Unknown user",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("SET balance = balance + $2, total_deposited = total_deposited + $2")).
					WithArgs(int64(42), int64(1000)).
					WillReturnError(pgx.ErrNoRows)
			},
			result: nil,
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta("SET balance = balance + $2, total_deposited = total_deposited + $2")).
					WithArgs(int64(42), int64(1000)).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			user, err := repo.CreditBalance(context.Background(), 42, 1000)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.result == nil {
				assert.Nil(t, user)
			} else {
				assert.Equal(t, tt.result.Balance, user.Balance)
				assert.Equal(t, tt.result.TotalDeposited, user.TotalDeposited)
			}
		})
	}
}

func TestRepository_DebitBalance(t *testing.T) {
	repo, mock := NewMock(t)

	t.Run("Guarded debit succeeds", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE telegram_id = $1 AND balance >= $2")).
			WithArgs(int64(42), int64(300)).
			WillReturnRows(userRows(700, 1000, 300))

		user, err := repo.DebitBalance(context.Background(), 42, 300)
		assert.NoError(t, err)
		assert.Equal(t, int64(700), user.Balance)
		assert.Equal(t, int64(300), user.TotalSpent)
	})

	t.Run("Guard miss yields nil user and nil error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE telegram_id = $1 AND balance >= $2")).
			WithArgs(int64(42), int64(99999)).
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.DebitBalance(context.Background(), 42, 99999)
		assert.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestRepository_FindByTelegramID(t *testing.T) {
	repo, mock := NewMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE telegram_id = $1")).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.FindByTelegramID(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, user)
}
