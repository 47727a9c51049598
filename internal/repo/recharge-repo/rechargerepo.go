package rechargerepo

import (
	"context"

	"github.com/google/uuid"
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

const rechargeColumns = `id, telegram_id, order_id, account_email, amount, status, completed_at, created_at`

func (r *Repository) Save(ctx context.Context, recharge *domain.Recharge) error {
	query := `
		INSERT INTO recharges (id, telegram_id, order_id, account_email, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		recharge.ID, recharge.TelegramID, recharge.OrderID,
		recharge.AccountEmail, recharge.Amount, recharge.Status,
	).Scan(&recharge.CreatedAt)
	if err != nil {
		zap.L().Error("can't save recharge", zap.Error(err))
		return err
	}
	return nil
}

// Complete moves a pending recharge to completed. The pending guard makes
// re-completing the same recharge a no-op: the second caller gets (nil, nil).
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) (*domain.Recharge, error) {
	query := `
		UPDATE recharges
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + rechargeColumns
	var rec domain.Recharge
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.TelegramID, &rec.OrderID, &rec.AccountEmail,
		&rec.Amount, &rec.Status, &rec.CompletedAt, &rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't complete recharge", zap.Error(err))
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) FindPending(ctx context.Context) ([]domain.Recharge, error) {
	query := `SELECT ` + rechargeColumns + ` FROM recharges WHERE status = 'pending' ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		zap.L().Error("failed to fetch pending recharges", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var recharges []domain.Recharge
	for rows.Next() {
		var rec domain.Recharge
		err := rows.Scan(
			&rec.ID, &rec.TelegramID, &rec.OrderID, &rec.AccountEmail,
			&rec.Amount, &rec.Status, &rec.CompletedAt, &rec.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan recharge row", zap.Error(err))
			return nil, err
		}
		recharges = append(recharges, rec)
	}

	return recharges, nil
}
