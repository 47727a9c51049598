package transactionrepo

import (
	"context"

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

// Append writes one ledger entry. Entries are never updated or deleted.
func (r *Repository) Append(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (telegram_id, kind, amount, balance_before, balance_after, description, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		tx.TelegramID, tx.Kind, tx.Amount, tx.BalanceBefore, tx.BalanceAfter,
		tx.Description, tx.RefID,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		zap.L().Error("can't append ledger entry", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) FindRecentByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, telegram_id, kind, amount, balance_before, balance_after, description, ref_id, created_at
		FROM transactions
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, telegramID, limit)
	if err != nil {
		zap.L().Error("failed to fetch transactions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.TelegramID, &tx.Kind, &tx.Amount, &tx.BalanceBefore,
			&tx.BalanceAfter, &tx.Description, &tx.RefID, &tx.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan transaction row", zap.Error(err))
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, nil
}
