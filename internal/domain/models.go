package domain

import (
	"time"

	"github.com/google/uuid"
)

// All monetary amounts are integer cents. Crypto pay amounts are provider
// units and are only displayed, never summed.

const (
	UnitAvailable = "available"
	UnitSold      = "sold"
)

const (
	DepositWaiting    = "waiting"
	DepositConfirming = "confirming"
	DepositFinished   = "finished"
	DepositFailed     = "failed"
	DepositExpired    = "expired"
)

const (
	RechargePending   = "pending"
	RechargeCompleted = "completed"
)

const (
	TxKindDeposit  = "deposit"
	TxKindPurchase = "purchase"
)

type User struct {
	ID             int       `db:"id"`
	TelegramID     int64     `db:"telegram_id"`
	FirstName      string    `db:"first_name"`
	Username       string    `db:"username"`
	Balance        int64     `db:"balance"`
	TotalDeposited int64     `db:"total_deposited"`
	TotalSpent     int64     `db:"total_spent"`
	IsBanned       bool      `db:"is_banned"`
	CreatedAt      time.Time `db:"created_at"`
}

type Product struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	Price         int64     `db:"price"`
	RechargePrice int64     `db:"recharge_price"`
	IsActive      bool      `db:"is_active"`
	TotalSold     int       `db:"total_sold"`
	CreatedAt     time.Time `db:"created_at"`
}

type CredentialUnit struct {
	ID        uuid.UUID  `db:"id"`
	ProductID uuid.UUID  `db:"product_id"`
	Secret    string     `db:"secret"`
	Status    string     `db:"status"`
	SoldTo    *int64     `db:"sold_to"`
	SoldAt    *time.Time `db:"sold_at"`
	OrderID   *uuid.UUID `db:"order_id"`
	CreatedAt time.Time  `db:"created_at"`
}

type Order struct {
	ID            uuid.UUID `db:"id"`
	TelegramID    int64     `db:"telegram_id"`
	ProductID     uuid.UUID `db:"product_id"`
	ProductName   string    `db:"product_name"`
	AmountPaid    int64     `db:"amount_paid"`
	RechargePrice int64     `db:"recharge_price"`
	AccountEmail  string    `db:"account_email"`
	CredentialID  uuid.UUID `db:"credential_id"`
	CreatedAt     time.Time `db:"created_at"`
}

type Deposit struct {
	ID          uuid.UUID  `db:"id"`
	TelegramID  int64      `db:"telegram_id"`
	PayCurrency string     `db:"pay_currency"`
	PriceUSD    int64      `db:"price_usd"`
	ActualUSD   *int64     `db:"actual_usd"`
	ExternalID  string     `db:"external_id"`
	PayAddress  string     `db:"pay_address"`
	PayAmount   float64    `db:"pay_amount"`
	Status      string     `db:"status"`
	ExpiresAt   time.Time  `db:"expires_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

type Recharge struct {
	ID           uuid.UUID  `db:"id"`
	TelegramID   int64      `db:"telegram_id"`
	OrderID      uuid.UUID  `db:"order_id"`
	AccountEmail string     `db:"account_email"`
	Amount       int64      `db:"amount"`
	Status       string     `db:"status"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Transaction is one append-only ledger entry. Amount is signed: positive for
// credits, negative for debits. BalanceBefore/BalanceAfter are snapshots taken
// from the atomic balance mutation itself.
type Transaction struct {
	ID            int       `db:"id"`
	TelegramID    int64     `db:"telegram_id"`
	Kind          string    `db:"kind"`
	Amount        int64     `db:"amount"`
	BalanceBefore int64     `db:"balance_before"`
	BalanceAfter  int64     `db:"balance_after"`
	Description   string    `db:"description"`
	RefID         string    `db:"ref_id"`
	CreatedAt     time.Time `db:"created_at"`
}
