package credentialrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const unitColumns = `id, product_id, secret, status, sold_to, sold_at, order_id, created_at`

// Reserve claims exactly one available unit for the product and flips it to
// sold in a single statement. SKIP LOCKED keeps concurrent claims from ever
// settling on the same row. Returns (nil, nil) when no unit matched.
func (r *Repository) Reserve(ctx context.Context, productID uuid.UUID, telegramID int64, orderID uuid.UUID) (*domain.CredentialUnit, error) {
	query := `
		UPDATE credential_units
		SET status = 'sold', sold_to = $2, sold_at = now(), order_id = $3
		WHERE id = (
			SELECT id FROM credential_units
			WHERE product_id = $1 AND status = 'available'
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + unitColumns
	var unit domain.CredentialUnit
	err := r.db.QueryRow(ctx, query, productID, telegramID, orderID).Scan(
		&unit.ID, &unit.ProductID, &unit.Secret, &unit.Status,
		&unit.SoldTo, &unit.SoldAt, &unit.OrderID, &unit.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't reserve credential unit", zap.Error(err))
		return nil, err
	}
	return &unit, nil
}

// Release puts a sold unit back to available. Used as compensation when the
// debit following a reservation fails.
func (r *Repository) Release(ctx context.Context, unitID uuid.UUID) error {
	query := `
		UPDATE credential_units
		SET status = 'available', sold_to = NULL, sold_at = NULL, order_id = NULL
		WHERE id = $1 AND status = 'sold'
	`
	_, err := r.db.Exec(ctx, query, unitID)
	if err != nil {
		zap.L().Error("can't release credential unit", zap.Error(err))
		return err
	}
	return nil
}

// BulkInsert persists new available units, skipping secrets that already
// exist for the product. Returns the number actually inserted.
func (r *Repository) BulkInsert(ctx context.Context, productID uuid.UUID, secrets []string) (int, error) {
	query := `
		INSERT INTO credential_units (id, product_id, secret)
		VALUES ($1, $2, $3)
	`
	inserted := 0
	for _, secret := range secrets {
		_, err := r.db.Exec(ctx, query, uuid.New(), productID, secret)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				zap.L().Debug("duplicate credential secret skipped", zap.String("product_id", productID.String()))
				continue
			}
			zap.L().Error("can't insert credential unit", zap.Error(err))
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// CountAvailable is advisory only. Reserve is the source of truth for stock.
func (r *Repository) CountAvailable(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM credential_units WHERE product_id = $1 AND status = 'available'`
	err := r.db.QueryRow(ctx, query, productID).Scan(&count)
	if err != nil {
		zap.L().Error("can't count available units", zap.Error(err))
		return 0, err
	}
	return count, nil
}
