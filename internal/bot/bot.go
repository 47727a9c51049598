package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/config"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/service/depositservice"
	"github.com/keybotdev/keybot/internal/service/orderservice"
	"go.uber.org/zap"
)

type UserService interface {
	EnsureUser(ctx context.Context, telegramID int64, firstName, username string) (*domain.User, error)
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	CountUsers(ctx context.Context) (int64, error)
}
type BalanceService interface {
	RecentTransactions(ctx context.Context, telegramID int64, limit int) ([]domain.Transaction, error)
}
type InventoryService interface {
	ActiveProducts(ctx context.Context) ([]domain.Product, error)
	AllProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	StockCount(ctx context.Context, productID uuid.UUID) (int64, error)
	BulkAddUnits(ctx context.Context, productID uuid.UUID, raw string) (int, error)
	CreateProduct(ctx context.Context, name, description string, price, rechargePrice int64) (*domain.Product, error)
	ToggleProduct(ctx context.Context, id uuid.UUID) (bool, error)
}
type OrderService interface {
	Purchase(ctx context.Context, telegramID int64, productID uuid.UUID) (*orderservice.PurchaseResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, telegramID int64) (*domain.Order, error)
	Orders(ctx context.Context, telegramID int64) ([]domain.Order, error)
	RequestRecharge(ctx context.Context, telegramID int64, orderID uuid.UUID) (*domain.Recharge, error)
	CompleteRecharge(ctx context.Context, rechargeID uuid.UUID) (*domain.Recharge, error)
	PendingRecharges(ctx context.Context) ([]domain.Recharge, error)
	Stats(ctx context.Context) (*orderservice.Stats, error)
}
type DepositService interface {
	Initiate(ctx context.Context, telegramID int64, amountUSD int64, payCurrency string) (*domain.Deposit, error)
	CheckStatus(ctx context.Context, depositID uuid.UUID, requesterID int64) (*depositservice.StatusInfo, error)
	RecentDeposits(ctx context.Context, limit int) ([]domain.Deposit, error)
}
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

// Sender adapts the raw API to the notifier's MessageSender. It exists as a
// separate type so notification plumbing can be built before the Bot itself.
type Sender struct {
	api *tgbotapi.BotAPI
}

func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

func (s *Sender) Send(_ context.Context, telegramID int64, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(telegramID, text))
	return err
}

type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	sessions *sessions

	users     UserService
	balance   BalanceService
	inventory InventoryService
	orders    OrderService
	deposits  DepositService
	admins    AdminNotifier
}

func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	users UserService,
	balance BalanceService,
	inventory InventoryService,
	orders OrderService,
	deposits DepositService,
	admins AdminNotifier,
) *Bot {
	return &Bot{
		api:       api,
		cfg:       cfg,
		sessions:  newSessions(),
		users:     users,
		balance:   balance,
		inventory: inventory,
		orders:    orders,
		deposits:  deposits,
		admins:    admins,
	}
}

// Run consumes updates via long polling until ctx is cancelled. Updates are
// handled sequentially; the handlers themselves are quick and the heavy
// lifting already happens in the services.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	zap.L().Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("update handler panicked", zap.Any("panic", r))
		}
	}()

	from := update.SentFrom()
	if from == nil {
		return
	}

	user, err := b.users.EnsureUser(ctx, from.ID, from.FirstName, from.UserName)
	if err != nil {
		return
	}
	if user.IsBanned {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		// Ack first so the client stops its spinner even if handling fails.
		b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
		b.handleCallback(ctx, user, update.CallbackQuery.Data)
	case update.Message != nil:
		b.handleMessage(ctx, user, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, user *domain.User, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.sessions.clear(user.TelegramID)
		switch msg.Command() {
		case "start":
			b.sendMainMenu(user)
		case "admin":
			b.handleAdminPanel(ctx, user)
		case "ban":
			b.handleBan(ctx, user, msg.CommandArguments(), true)
		case "unban":
			b.handleBan(ctx, user, msg.CommandArguments(), false)
		default:
			b.reply(user.TelegramID, "Unknown command. Use /start.")
		}
		return
	}

	sess, ok := b.sessions.get(user.TelegramID)
	if !ok {
		b.sendMainMenu(user)
		return
	}
	b.sessions.clear(user.TelegramID)

	switch sess.State {
	case stateAwaitingDepositAmount:
		b.handleDepositAmountInput(user, msg.Text)
	case stateAwaitingProductForm:
		b.handleProductFormInput(ctx, user, msg.Text)
	case stateAwaitingKeys:
		b.handleKeysInput(ctx, user, sess.ProductID, msg.Text)
	default:
		b.sendMainMenu(user)
	}
}

func (b *Bot) handleCallback(ctx context.Context, user *domain.User, data string) {
	action, arg := splitCallback(data)

	switch action {
	case "menu":
		b.sessions.clear(user.TelegramID)
		b.sendMainMenu(user)
	case "shop":
		b.handleShop(ctx, user)
	case "product":
		b.handleProduct(ctx, user, arg)
	case "buy":
		b.handleBuy(ctx, user, arg)
	case "confirm_buy":
		b.handleConfirmBuy(ctx, user, arg)
	case "balance":
		b.handleBalance(ctx, user)
	case "history":
		b.handleHistory(ctx, user)
	case "orders":
		b.handleOrders(ctx, user)
	case "order":
		b.handleOrder(ctx, user, arg)
	case "recharge":
		b.handleRecharge(ctx, user, arg)
	case "confirm_recharge":
		b.handleConfirmRecharge(ctx, user, arg)
	case "deposit":
		b.handleDeposit(user)
	case "dep_amt":
		b.handleDepositAmount(user, arg)
	case "dep_custom":
		b.handleDepositCustom(user)
	case "dep_cur":
		b.handleDepositCurrency(ctx, user, arg)
	case "dep_check":
		b.handleDepositCheck(ctx, user, arg)
	case "admin":
		b.handleAdminPanel(ctx, user)
	case "adm_stats":
		b.handleAdminStats(ctx, user)
	case "adm_products":
		b.handleAdminProducts(ctx, user)
	case "adm_add":
		b.handleAdminAddProduct(user)
	case "adm_keys":
		b.handleAdminAddKeys(user, arg)
	case "adm_toggle":
		b.handleAdminToggle(ctx, user, arg)
	case "adm_recharges":
		b.handleAdminRecharges(ctx, user)
	case "adm_done":
		b.handleAdminRechargeDone(ctx, user, arg)
	default:
		zap.L().Warn("unknown callback", zap.String("data", data))
	}
}

// splitCallback splits "action:arg" callback data. Args may themselves
// contain colons.
func splitCallback(data string) (string, string) {
	if i := strings.Index(data, ":"); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

func (b *Bot) reply(telegramID int64, text string) {
	b.send(tgbotapi.NewMessage(telegramID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		zap.L().Warn("send failed", zap.Error(err))
	}
}
