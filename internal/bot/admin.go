package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/keybotdev/keybot/internal/domain"
	"github.com/keybotdev/keybot/internal/service/inventoryservice"
	"github.com/keybotdev/keybot/internal/service/orderservice"
	"github.com/keybotdev/keybot/pkg/money"
)

func (b *Bot) handleAdminPanel(ctx context.Context, user *domain.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		b.reply(user.TelegramID, "You are not allowed to do that.")
		return
	}

	msg := tgbotapi.NewMessage(user.TelegramID, "Admin panel:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "adm_stats"),
			tgbotapi.NewInlineKeyboardButtonData("📦 Products", "adm_products"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🔄 Pending recharges", "adm_recharges"),
		},
		backRow(),
	)
	b.send(msg)
}

func (b *Bot) handleAdminStats(ctx context.Context, user *domain.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	users, err := b.users.CountUsers(ctx)
	if err != nil {
		b.reply(user.TelegramID, "Can't load stats right now.")
		return
	}
	stats, err := b.orders.Stats(ctx)
	if err != nil {
		b.reply(user.TelegramID, "Can't load stats right now.")
		return
	}
	deposits, err := b.deposits.RecentDeposits(ctx, 5)
	if err != nil {
		b.reply(user.TelegramID, "Can't load stats right now.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Users: %d\nOrders: %d\nRevenue: %s\n",
		users, stats.OrderCount, money.USD(stats.Revenue))
	if len(deposits) > 0 {
		sb.WriteString("\nLatest deposits:")
		for _, d := range deposits {
			fmt.Fprintf(&sb, "\n%s  %s  [%s]", d.CreatedAt.Format("02 Jan 15:04"), money.USD(d.PriceUSD), d.Status)
		}
	}
	b.reply(user.TelegramID, sb.String())
}

func (b *Bot) handleAdminProducts(ctx context.Context, user *domain.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	products, err := b.inventory.AllProducts(ctx)
	if err != nil {
		b.reply(user.TelegramID, "Can't load products right now.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		state := "🟢"
		if !p.IsActive {
			state = "🔴"
		}
		stock, _ := b.inventory.StockCount(ctx, p.ID)
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("%s %s — %s, stock %d, sold %d", state, p.Name, money.USD(p.Price), stock, p.TotalSold),
					"adm_toggle:"+p.ID.String()),
			},
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("🔑 Add keys to "+p.Name, "adm_keys:"+p.ID.String()),
			},
		)
	}
	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("➕ New product", "adm_add")},
		backRowTo("admin"),
	)

	msg := tgbotapi.NewMessage(user.TelegramID, "Products (tap to toggle visibility):")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleAdminAddProduct(user *domain.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}
	b.sessions.set(user.TelegramID, session{State: stateAwaitingProductForm})
	b.reply(user.TelegramID, "Send the product as:\nName | Description | Price | Recharge price\n\nExample:\nNetflix 1y | Shared premium account | 14.99 | 4.99")
}

func (b *Bot) handleProductFormInput(ctx context.Context, user *domain.User, text string) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	parts := strings.Split(text, "|")
	if len(parts) < 3 || len(parts) > 4 {
		b.reply(user.TelegramID, "Wrong format. Expected: Name | Description | Price | Recharge price")
		return
	}

	name := strings.TrimSpace(parts[0])
	description := strings.TrimSpace(parts[1])
	price, err := money.ParseUSD(parts[2])
	if name == "" || err != nil {
		b.reply(user.TelegramID, "Wrong format. Expected: Name | Description | Price | Recharge price")
		return
	}
	var rechargePrice int64
	if len(parts) == 4 {
		rechargePrice, err = money.ParseUSD(parts[3])
		if err != nil {
			b.reply(user.TelegramID, "Wrong format. Expected: Name | Description | Price | Recharge price")
			return
		}
	}

	product, err := b.inventory.CreateProduct(ctx, name, description, price, rechargePrice)
	if err != nil {
		b.reply(user.TelegramID, "Couldn't create the product, try again.")
		return
	}
	b.reply(user.TelegramID, fmt.Sprintf(
		"Created %s at %s (recharge %s). It is hidden until you toggle it on and add keys.",
		product.Name, money.USD(product.Price), money.USD(product.RechargePrice)))
}

func (b *Bot) handleAdminAddKeys(user *domain.User, arg string) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}
	b.sessions.set(user.TelegramID, session{State: stateAwaitingKeys, ProductID: id})
	b.reply(user.TelegramID, "Send the credentials, one per line (email:password).")
}

func (b *Bot) handleKeysInput(ctx context.Context, user *domain.User, productID uuid.UUID, text string) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	count, err := b.inventory.BulkAddUnits(ctx, productID, text)
	if errors.Is(err, inventoryservice.ErrNoValidEntries) {
		b.reply(user.TelegramID, "Nothing was added: no new entries in that message. Duplicates are skipped.")
		return
	}
	if err != nil {
		b.reply(user.TelegramID, "Import failed, try again.")
		return
	}
	b.reply(user.TelegramID, fmt.Sprintf("Added %d unit(s).", count))
}

func (b *Bot) handleAdminToggle(ctx context.Context, user *domain.User, arg string) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}

	active, err := b.inventory.ToggleProduct(ctx, id)
	if err != nil {
		b.reply(user.TelegramID, "Toggle failed.")
		return
	}
	if active {
		b.reply(user.TelegramID, "Product is now visible in the shop.")
	} else {
		b.reply(user.TelegramID, "Product is now hidden.")
	}
}

func (b *Bot) handleAdminRecharges(ctx context.Context, user *domain.User) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}

	recharges, err := b.orders.PendingRecharges(ctx)
	if err != nil {
		b.reply(user.TelegramID, "Can't load recharges right now.")
		return
	}
	if len(recharges) == 0 {
		b.reply(user.TelegramID, "No pending recharges.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range recharges {
		label := fmt.Sprintf("%s — %s (user %d)", r.AccountEmail, money.USD(r.Amount), r.TelegramID)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ "+label, "adm_done:"+r.ID.String()),
		})
	}
	rows = append(rows, backRowTo("admin"))

	msg := tgbotapi.NewMessage(user.TelegramID, "Pending recharges (tap when fulfilled):")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleAdminRechargeDone(ctx context.Context, user *domain.User, arg string) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		return
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return
	}

	recharge, err := b.orders.CompleteRecharge(ctx, id)
	if errors.Is(err, orderservice.ErrRechargeNotFound) {
		b.reply(user.TelegramID, "Already marked as done.")
		return
	}
	if err != nil {
		b.reply(user.TelegramID, "Couldn't complete the recharge.")
		return
	}

	b.reply(user.TelegramID, "Marked as done.")
	b.reply(recharge.TelegramID, fmt.Sprintf("🔄 Your recharge for %s is complete!", recharge.AccountEmail))
}

func (b *Bot) handleBan(ctx context.Context, user *domain.User, arg string, banned bool) {
	if !b.cfg.IsAdmin(user.TelegramID) {
		b.reply(user.TelegramID, "You are not allowed to do that.")
		return
	}

	target, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || target <= 0 {
		b.reply(user.TelegramID, "Usage: /ban <telegram id> or /unban <telegram id>")
		return
	}

	if err := b.users.SetBanned(ctx, target, banned); err != nil {
		b.reply(user.TelegramID, "Failed, try again.")
		return
	}
	if banned {
		b.reply(user.TelegramID, fmt.Sprintf("User %d banned.", target))
	} else {
		b.reply(user.TelegramID, fmt.Sprintf("User %d unbanned.", target))
	}
}
