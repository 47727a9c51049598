package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/config"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/service/balanceservice"
	"github.com/keybotdev/keybot/internal/service/depositservice"
	"github.com/keybotdev/keybot/internal/service/inventoryservice"
	"github.com/keybotdev/keybot/internal/service/orderservice"
	"github.com/keybotdev/keybot/pkg/money"
)

const lowStockThreshold = 3

func (b *Bot) sendMainMenu(user *domain.User) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("🛒 Shop", "shop")},
		{
			tgbotapi.NewInlineKeyboardButtonData("💰 Balance", "balance"),
			tgbotapi.NewInlineKeyboardButtonData("📦 My orders", "orders"),
		},
		{tgbotapi.NewInlineKeyboardButtonData("➕ Deposit", "deposit")},
	}
	if b.cfg.IsAdmin(user.TelegramID) {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Admin", "admin"),
		})
	}

	msg := tgbotapi.NewMessage(user.TelegramID,
		fmt.Sprintf("Welcome, %s!\nYour balance: %s", user.FirstName, money.USD(user.Balance)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleShop(ctx context.Context, user *domain.User) {
	products, err := b.inventory.ActiveProducts(ctx)
	if err != nil {
		b.reply(user.TelegramID, "Something went wrong, try again later.")
		return
	}
	if len(products) == 0 {
		b.reply(user.TelegramID, "The shop is empty right now, check back later.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		label := fmt.Sprintf("%s — %s", p.Name, money.USD(p.Price))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, "product:"+p.ID.String()),
		})
	}
	rows = append(rows, backRow())

	msg := tgbotapi.NewMessage(user.TelegramID, "Pick a product:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleProduct(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}
	product, err := b.inventory.GetProduct(ctx, id)
	if err != nil {
		b.reply(user.TelegramID, "This product is no longer available.")
		return
	}
	stock, err := b.inventory.StockCount(ctx, id)
	if err != nil {
		stock = 0
	}

	text := fmt.Sprintf("%s\n%s\n\nPrice: %s\nIn stock: %d",
		product.Name, product.Description, money.USD(product.Price), stock)

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("Buy", "buy:"+arg)},
		backRowTo("shop"),
	)
	b.send(msg)
}

func (b *Bot) handleBuy(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}
	product, err := b.inventory.GetProduct(ctx, id)
	if err != nil {
		b.reply(user.TelegramID, "This product is no longer available.")
		return
	}

	msg := tgbotapi.NewMessage(user.TelegramID,
		fmt.Sprintf("Buy %s for %s?\nYour balance: %s",
			product.Name, money.USD(product.Price), money.USD(user.Balance)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm_buy:"+arg),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "shop"),
		},
	)
	b.send(msg)
}

func (b *Bot) handleConfirmBuy(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}

	result, err := b.orders.Purchase(ctx, user.TelegramID, id)
	switch {
	case errors.Is(err, balanceservice.ErrInsufficientBalance):
		msg := tgbotapi.NewMessage(user.TelegramID, "Not enough balance. Top up and try again.")
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("➕ Deposit", "deposit")},
		)
		b.send(msg)
		return
	case errors.Is(err, inventoryservice.ErrOutOfStock):
		b.reply(user.TelegramID, "Sold out! Nothing was charged.")
		return
	case errors.Is(err, orderservice.ErrProductUnavailable), errors.Is(err, inventoryservice.ErrProductNotFound):
		b.reply(user.TelegramID, "This product is no longer available.")
		return
	case err != nil:
		b.reply(user.TelegramID, "Purchase failed, nothing was charged. Try again later.")
		return
	}

	b.reply(user.TelegramID, fmt.Sprintf(
		"✅ Purchase complete!\n\nProduct: %s\nYour credentials:\n%s\n\nBalance left: %s",
		result.Order.ProductName, result.Secret, money.USD(result.User.Balance)))

	if stock, err := b.inventory.StockCount(ctx, id); err == nil && stock < lowStockThreshold {
		b.admins.NotifyAdmins(ctx, fmt.Sprintf("Low stock: %s has %d unit(s) left.", result.Order.ProductName, stock))
	}
}

func (b *Bot) handleBalance(ctx context.Context, user *domain.User) {
	text := fmt.Sprintf("Balance: %s\nTotal deposited: %s\nTotal spent: %s",
		money.USD(user.Balance), money.USD(user.TotalDeposited), money.USD(user.TotalSpent))

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📜 History", "history"),
			tgbotapi.NewInlineKeyboardButtonData("➕ Deposit", "deposit"),
		},
		backRow(),
	)
	b.send(msg)
}

func (b *Bot) handleHistory(ctx context.Context, user *domain.User) {
	txs, err := b.balance.RecentTransactions(ctx, user.TelegramID, 10)
	if err != nil {
		b.reply(user.TelegramID, "Something went wrong, try again later.")
		return
	}
	if len(txs) == 0 {
		b.reply(user.TelegramID, "No transactions yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Recent transactions:\n")
	for _, tx := range txs {
		sign := "+"
		if tx.Amount < 0 {
			sign = ""
		}
		fmt.Fprintf(&sb, "\n%s  %s%s  (%s)", tx.CreatedAt.Format("02 Jan 15:04"), sign, money.USD(tx.Amount), tx.Description)
	}
	b.reply(user.TelegramID, sb.String())
}

func (b *Bot) handleOrders(ctx context.Context, user *domain.User) {
	orders, err := b.orders.Orders(ctx, user.TelegramID)
	if err != nil {
		b.reply(user.TelegramID, "Something went wrong, try again later.")
		return
	}
	if len(orders) == 0 {
		b.reply(user.TelegramID, "You have no orders yet.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range orders {
		label := fmt.Sprintf("%s — %s", o.ProductName, o.CreatedAt.Format("02 Jan 2006"))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, "order:"+o.ID.String()),
		})
	}
	rows = append(rows, backRow())

	msg := tgbotapi.NewMessage(user.TelegramID, "Your orders:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleOrder(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}
	order, err := b.orders.GetOrder(ctx, id, user.TelegramID)
	if err != nil {
		b.reply(user.TelegramID, "Order not found.")
		return
	}

	price := order.RechargePrice
	if price == 0 {
		price = order.AmountPaid
	}
	text := fmt.Sprintf("Order %s\n\nProduct: %s\nAccount: %s\nPaid: %s\nDate: %s",
		order.ID, order.ProductName, order.AccountEmail,
		money.USD(order.AmountPaid), order.CreatedAt.Format("02 Jan 2006 15:04"))

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🔄 Recharge (%s)", money.USD(price)), "recharge:"+arg),
		},
		backRowTo("orders"),
	)
	b.send(msg)
}

func (b *Bot) handleRecharge(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}
	order, err := b.orders.GetOrder(ctx, id, user.TelegramID)
	if err != nil {
		b.reply(user.TelegramID, "Order not found.")
		return
	}

	price := order.RechargePrice
	if price == 0 {
		price = order.AmountPaid
	}

	msg := tgbotapi.NewMessage(user.TelegramID,
		fmt.Sprintf("Recharge the account %s for %s?\nYour balance: %s",
			order.AccountEmail, money.USD(price), money.USD(user.Balance)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm_recharge:"+arg),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "orders"),
		},
	)
	b.send(msg)
}

func (b *Bot) handleConfirmRecharge(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}

	recharge, err := b.orders.RequestRecharge(ctx, user.TelegramID, id)
	switch {
	case errors.Is(err, balanceservice.ErrInsufficientBalance):
		b.reply(user.TelegramID, "Not enough balance for a recharge. Top up first.")
		return
	case errors.Is(err, orderservice.ErrOrderNotFound):
		b.reply(user.TelegramID, "Order not found.")
		return
	case err != nil:
		b.reply(user.TelegramID, "Recharge request failed, nothing was charged.")
		return
	}

	b.reply(user.TelegramID, "✅ Recharge requested. You will be notified when it is done.")
	b.admins.NotifyAdmins(ctx, fmt.Sprintf(
		"Recharge request %s\nAccount: %s\nAmount: %s\nFrom user: %d",
		recharge.ID, recharge.AccountEmail, money.USD(recharge.Amount), user.TelegramID))
}

func (b *Bot) handleDeposit(user *domain.User) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, cents := range []int64{1000, 2500, 5000, 10000} {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(money.USD(cents), fmt.Sprintf("dep_amt:%d", cents)),
		})
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("Custom amount", "dep_custom")},
		backRow(),
	)

	msg := tgbotapi.NewMessage(user.TelegramID, "How much would you like to deposit?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleDepositCustom(user *domain.User) {
	b.sessions.set(user.TelegramID, session{State: stateAwaitingDepositAmount})
	b.reply(user.TelegramID, fmt.Sprintf("Send the amount in USD (%s to %s):",
		money.USD(b.cfg.MinDepositUSD*100), money.USD(b.cfg.MaxDepositUSD*100)))
}

func (b *Bot) handleDepositAmountInput(user *domain.User, text string) {
	cents, err := money.ParseUSD(text)
	if err != nil || cents < b.cfg.MinDepositUSD*100 || cents > b.cfg.MaxDepositUSD*100 {
		b.reply(user.TelegramID, fmt.Sprintf("Please send a valid amount between %s and %s.",
			money.USD(b.cfg.MinDepositUSD*100), money.USD(b.cfg.MaxDepositUSD*100)))
		return
	}
	b.handleDepositAmount(user, strconv.FormatInt(cents, 10))
}

func (b *Bot) handleDepositAmount(user *domain.User, arg string) {
	cents, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || cents <= 0 {
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range config.SupportedCryptos {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(c.Name, fmt.Sprintf("dep_cur:%d:%s", cents, c.Ticker)),
		})
	}
	rows = append(rows, backRowTo("deposit"))

	msg := tgbotapi.NewMessage(user.TelegramID,
		fmt.Sprintf("Deposit %s. Pick a currency:", money.USD(cents)))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleDepositCurrency(ctx context.Context, user *domain.User, arg string) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return
	}
	cents, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return
	}
	ticker := parts[1]
	if !config.IsSupportedCrypto(ticker) {
		b.reply(user.TelegramID, "That currency is not supported.")
		return
	}

	deposit, err := b.deposits.Initiate(ctx, user.TelegramID, cents, ticker)
	switch {
	case errors.Is(err, depositservice.ErrInvalidAmount):
		b.reply(user.TelegramID, "That amount is outside the allowed range.")
		return
	case errors.Is(err, depositservice.ErrProvider):
		b.reply(user.TelegramID, "The payment provider is unavailable right now, try again in a few minutes.")
		return
	case err != nil:
		b.reply(user.TelegramID, "Something went wrong, try again later.")
		return
	}

	text := fmt.Sprintf(
		"Deposit %s\n\nSend exactly:\n%.8f %s\n\nTo address:\n%s\n\nThe invoice expires at %s. Your balance is credited automatically after confirmation.",
		money.USD(deposit.PriceUSD), deposit.PayAmount, strings.ToUpper(deposit.PayCurrency),
		deposit.PayAddress, deposit.ExpiresAt.Format("15:04 MST"))

	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🔍 Check payment", "dep_check:"+deposit.ID.String()),
		},
	)
	b.send(msg)
}

func (b *Bot) handleDepositCheck(ctx context.Context, user *domain.User, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}

	info, err := b.deposits.CheckStatus(ctx, id, user.TelegramID)
	switch {
	case errors.Is(err, depositservice.ErrDepositNotFound):
		b.reply(user.TelegramID, "Deposit not found.")
		return
	case errors.Is(err, depositservice.ErrProvider):
		b.reply(user.TelegramID, "Can't reach the payment provider right now, try again shortly.")
		return
	case err != nil:
		b.reply(user.TelegramID, "Something went wrong, try again later.")
		return
	}

	switch info.Status {
	case domain.DepositFinished:
		if info.AlreadyCredited {
			b.reply(user.TelegramID, "This deposit was already credited to your balance.")
		} else {
			b.reply(user.TelegramID, "✅ Payment confirmed and credited to your balance!")
		}
	case domain.DepositConfirming:
		b.reply(user.TelegramID, "Payment detected, waiting for network confirmations.")
	case domain.DepositExpired:
		b.reply(user.TelegramID, "This invoice expired. Start a new deposit if you still want to top up.")
	case domain.DepositFailed:
		b.reply(user.TelegramID, "This payment failed. Start a new deposit or contact support.")
	default:
		b.reply(user.TelegramID, "No payment detected yet. Give the network a few minutes.")
	}
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return backRowTo("menu")
}

func backRowTo(target string) []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", target),
	}
}
