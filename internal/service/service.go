package service

import (
	"time"

	"github.com/keybotdev/keybot/internal/config"
	"github.com/keybotdev/keybot/internal/pg"
	"github.com/keybotdev/keybot/internal/repo"
	"github.com/keybotdev/keybot/internal/service/balanceservice"
	"github.com/keybotdev/keybot/internal/service/depositservice"
	"github.com/keybotdev/keybot/internal/service/inventoryservice"
	"github.com/keybotdev/keybot/internal/service/orderservice"
	"github.com/keybotdev/keybot/internal/service/userservice"
)

type Services struct {
	UserService      *userservice.Service
	BalanceService   *balanceservice.Service
	InventoryService *inventoryservice.Service
	OrderService     *orderservice.Service
	DepositService   *depositservice.Service
}

func New(
	cfg *config.Config,
	repos *repo.Repositories,
	txManager pg.TXManager,
	gateway depositservice.Gateway,
	notifier depositservice.Notifier,
) *Services {
	userService := userservice.New(repos.UserRepo)
	balanceService := balanceservice.New(repos.UserRepo, repos.TransactionRepo)
	inventoryService := inventoryservice.New(repos.CredentialRepo, repos.ProductRepo)
	orderService := orderservice.New(inventoryService, balanceService, repos.OrderRepo, repos.RechargeRepo, txManager)
	depositService := depositservice.New(
		repos.DepositRepo, gateway, balanceService, notifier,
		cfg.MinDepositUSD, cfg.MaxDepositUSD,
		time.Duration(cfg.PaymentExpiryMin)*time.Minute,
	)

	return &Services{
		UserService:      userService,
		BalanceService:   balanceService,
		InventoryService: inventoryService,
		OrderService:     orderService,
		DepositService:   depositService,
	}
}
