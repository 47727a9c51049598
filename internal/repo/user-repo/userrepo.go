package userrepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/pg"
	"go.uber.org/zap"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

const userColumns = `id, telegram_id, first_name, username, balance, total_deposited, total_spent, is_banned, created_at`

func scanUser(r pgx.Row) (*domain.User, error) {
	var user domain.User
	err := r.Scan(
		&user.ID, &user.TelegramID, &user.FirstName, &user.Username,
		&user.Balance, &user.TotalDeposited, &user.TotalSpent,
		&user.IsBanned, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates the user on first contact and refreshes the profile fields on
// every later one.
func (repo *Repository) Upsert(ctx context.Context, telegramID int64, firstName, username string) (*domain.User, error) {
	query := `
		INSERT INTO users (telegram_id, first_name, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, username = EXCLUDED.username, updated_at = now()
		RETURNING ` + userColumns
	user, err := scanUser(repo.db.QueryRow(ctx, query, telegramID, firstName, username))
	if err != nil {
		zap.L().Error("can't upsert user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (repo *Repository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	user, err := scanUser(repo.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// CreditBalance atomically adds amount to balance and totalDeposited and
// returns the post-update document.
func (repo *Repository) CreditBalance(ctx context.Context, telegramID int64, amount int64) (*domain.User, error) {
	query := `
		UPDATE users
		SET balance = balance + $2, total_deposited = total_deposited + $2, updated_at = now()
		WHERE telegram_id = $1
		RETURNING ` + userColumns
	user, err := scanUser(repo.db.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't credit balance", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// DebitBalance atomically subtracts amount, guarded by balance >= amount in
// the same statement. Returns (nil, nil) when the guard does not match, which
// covers both an unknown user and an insufficient balance.
func (repo *Repository) DebitBalance(ctx context.Context, telegramID int64, amount int64) (*domain.User, error) {
	query := `
		UPDATE users
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = now()
		WHERE telegram_id = $1 AND balance >= $2
		RETURNING ` + userColumns
	user, err := scanUser(repo.db.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't debit balance", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (repo *Repository) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	_, err := repo.db.Exec(ctx, `UPDATE users SET is_banned = $2, updated_at = now() WHERE telegram_id = $1`, telegramID, banned)
	if err != nil {
		zap.L().Error("can't update ban flag", zap.Error(err))
		return err
	}
	return nil
}

func (repo *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		zap.L().Error("can't count users", zap.Error(err))
		return 0, err
	}
	return count, nil
}
