package depositrepo

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

const depositColumns = `id, telegram_id, pay_currency, price_usd, actual_usd, external_id, pay_address, pay_amount, status, expires_at, completed_at, created_at`

func scanDeposit(r pgx.Row) (*domain.Deposit, error) {
	var d domain.Deposit
	err := r.Scan(
		&d.ID, &d.TelegramID, &d.PayCurrency, &d.PriceUSD, &d.ActualUSD,
		&d.ExternalID, &d.PayAddress, &d.PayAmount, &d.Status,
		&d.ExpiresAt, &d.CompletedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Save(ctx context.Context, deposit *domain.Deposit) error {
	query := `
		INSERT INTO deposits (id, telegram_id, pay_currency, price_usd, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		deposit.ID, deposit.TelegramID, deposit.PayCurrency,
		deposit.PriceUSD, deposit.Status, deposit.ExpiresAt,
	).Scan(&deposit.CreatedAt)
	if err != nil {
		zap.L().Error("can't save deposit", zap.Error(err))
		return err
	}
	return nil
}

// AttachPayment stores the provider's response on the local deposit row.
func (r *Repository) AttachPayment(ctx context.Context, id uuid.UUID, externalID, payAddress string, payAmount float64) error {
	query := `
		UPDATE deposits
		SET external_id = $2, pay_address = $3, pay_amount = $4
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, externalID, payAddress, payAmount)
	if err != nil {
		zap.L().Error("can't attach payment to deposit", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`
	deposit, err := scanDeposit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find deposit", zap.Error(err))
		return nil, err
	}
	return deposit, nil
}

func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE external_id = $1`
	deposit, err := scanDeposit(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find deposit by external id", zap.Error(err))
		return nil, err
	}
	return deposit, nil
}

// MarkConfirming moves a waiting deposit to confirming. A deposit already past
// waiting is left untouched.
func (r *Repository) MarkConfirming(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE deposits SET status = 'confirming' WHERE id = $1 AND status = 'waiting'`
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		zap.L().Error("can't mark deposit confirming", zap.Error(err))
		return err
	}
	return nil
}

// Finish transitions the deposit to its terminal success state. The status
// guard makes the check and the write one atomic statement, so of any number
// of concurrent deliveries exactly one gets the updated row back; the rest
// get (nil, nil).
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, actualUSD int64) (*domain.Deposit, error) {
	query := `
		UPDATE deposits
		SET status = 'finished', actual_usd = $2, completed_at = now()
		WHERE id = $1 AND status IN ('waiting', 'confirming')
		RETURNING ` + depositColumns
	deposit, err := scanDeposit(r.db.QueryRow(ctx, query, id, actualUSD))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't finish deposit", zap.Error(err))
		return nil, err
	}
	return deposit, nil
}

// MarkTerminalFailure sets failed or expired, never touching a finished row.
func (r *Repository) MarkTerminalFailure(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE deposits SET status = $2 WHERE id = $1 AND status IN ('waiting', 'confirming')`
	_, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		zap.L().Error("can't mark deposit failed", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) FindRecent(ctx context.Context, limit int) ([]domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		zap.L().Error("failed to fetch deposits", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		err := rows.Scan(
			&d.ID, &d.TelegramID, &d.PayCurrency, &d.PriceUSD, &d.ActualUSD,
			&d.ExternalID, &d.PayAddress, &d.PayAmount, &d.Status,
			&d.ExpiresAt, &d.CompletedAt, &d.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan deposit row", zap.Error(err))
			return nil, err
		}
		deposits = append(deposits, d)
	}

	return deposits, nil
}
