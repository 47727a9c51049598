package repo

import (
	"github.com/keybotdev/keybot/internal/pg"
	credentialrepo "github.com/keybotdev/keybot/internal/repo/credential-repo"
	depositrepo "github.com/keybotdev/keybot/internal/repo/deposit-repo"
	orderrepo "github.com/keybotdev/keybot/internal/repo/order-repo"
	productrepo "github.com/keybotdev/keybot/internal/repo/product-repo"
	rechargerepo "github.com/keybotdev/keybot/internal/repo/recharge-repo"
	transactionrepo "github.com/keybotdev/keybot/internal/repo/transaction-repo"
	userrepo "github.com/keybotdev/keybot/internal/repo/user-repo"
)

type Repositories struct {
	UserRepo        *userrepo.Repository
	ProductRepo     *productrepo.Repository
	CredentialRepo  *credentialrepo.Repository
	OrderRepo       *orderrepo.Repository
	DepositRepo     *depositrepo.Repository
	RechargeRepo    *rechargerepo.Repository
	TransactionRepo *transactionrepo.Repository
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		UserRepo:        userrepo.New(conn),
		ProductRepo:     productrepo.New(conn),
		CredentialRepo:  credentialrepo.New(conn),
		OrderRepo:       orderrepo.New(conn),
		DepositRepo:     depositrepo.New(conn),
		RechargeRepo:    rechargerepo.New(conn),
		TransactionRepo: transactionrepo.New(conn),
	}
}
