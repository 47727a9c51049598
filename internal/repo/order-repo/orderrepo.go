package orderrepo

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

const orderColumns = `id, telegram_id, product_id, product_name, amount_paid, recharge_price, account_email, credential_id, created_at`

func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, telegram_id, product_id, product_name, amount_paid, recharge_price, account_email, credential_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		order.ID, order.TelegramID, order.ProductID, order.ProductName,
		order.AmountPaid, order.RechargePrice, order.AccountEmail, order.CredentialID,
	).Scan(&order.CreatedAt)
	if err != nil {
		zap.L().Error("can't save order", zap.Error(err))
		return err
	}
	return nil
}

// FindForUser looks the order up scoped to its buyer.
func (r *Repository) FindForUser(ctx context.Context, orderID uuid.UUID, telegramID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND telegram_id = $2`
	var o domain.Order
	err := r.db.QueryRow(ctx, query, orderID, telegramID).Scan(
		&o.ID, &o.TelegramID, &o.ProductID, &o.ProductName, &o.AmountPaid,
		&o.RechargePrice, &o.AccountEmail, &o.CredentialID, &o.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find order", zap.Error(err))
		return nil, err
	}
	return &o, nil
}

func (r *Repository) FindByTelegramID(ctx context.Context, telegramID int64, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE telegram_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, telegramID, limit)
	if err != nil {
		zap.L().Error("failed to fetch orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		err := rows.Scan(
			&o.ID, &o.TelegramID, &o.ProductID, &o.ProductName, &o.AmountPaid,
			&o.RechargePrice, &o.AccountEmail, &o.CredentialID, &o.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		zap.L().Error("can't count orders", zap.Error(err))
		return 0, err
	}
	return count, nil
}

// Revenue sums amount_paid over all orders.
func (r *Repository) Revenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount_paid), 0) FROM orders`).Scan(&total)
	if err != nil {
		zap.L().Error("can't compute revenue", zap.Error(err))
		return 0, err
	}
	return total, nil
}
