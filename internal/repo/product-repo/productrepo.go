package productrepo

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

const productColumns = `id, name, description, price, recharge_price, is_active, total_sold, created_at`

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	var p domain.Product
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.RechargePrice,
		&p.IsActive, &p.TotalSold, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find product", zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *Repository) FindActive(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active ORDER BY created_at DESC`
	return r.queryProducts(ctx, query)
}

func (r *Repository) FindAll(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`
	return r.queryProducts(ctx, query)
}

func (r *Repository) queryProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		zap.L().Error("failed to fetch products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.RechargePrice,
			&p.IsActive, &p.TotalSold, &p.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan product row", zap.Error(err))
			return nil, err
		}
		products = append(products, p)
	}

	return products, nil
}

func (r *Repository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products (id, name, description, price, recharge_price, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.RechargePrice,
	).Scan(&product.CreatedAt)
	if err != nil {
		zap.L().Error("can't save product", zap.Error(err))
		return nil, err
	}
	product.IsActive = true
	return product, nil
}

// Toggle flips the active flag and returns the new state.
func (r *Repository) Toggle(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE products SET is_active = NOT is_active
		WHERE id = $1
		RETURNING is_active
	`
	var active bool
	err := r.db.QueryRow(ctx, query, id).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, pgx.ErrNoRows
		}
		zap.L().Error("can't toggle product", zap.Error(err))
		return false, err
	}
	return active, nil
}

func (r *Repository) IncrementSold(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET total_sold = total_sold + 1 WHERE id = $1`, id)
	if err != nil {
		zap.L().Error("can't increment total_sold", zap.Error(err))
		return err
	}
	return nil
}
