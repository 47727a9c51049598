package notify

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=notify.go -destination=mock_notify.go -package=notify

type MessageSender interface {
	Send(ctx context.Context, telegramID int64, text string) error
}

// Notifier delivers out-of-band messages. Delivery is best effort: users
// block bots, accounts get deleted, and none of that may fail the operation
// that triggered the message.
type Notifier struct {
	sender   MessageSender
	adminIDs []int64
}

func New(sender MessageSender, adminIDs []int64) *Notifier {
	return &Notifier{
		sender:   sender,
		adminIDs: adminIDs,
	}
}

func (n *Notifier) NotifyUser(ctx context.Context, telegramID int64, text string) {
	if err := n.sender.Send(ctx, telegramID, text); err != nil {
		zap.L().Warn("user notification dropped", zap.Int64("telegram_id", telegramID), zap.Error(err))
	}
}

// NotifyAdmins fans out to every configured admin concurrently. One admin's
// failed delivery never blocks or skips the others.
func (n *Notifier) NotifyAdmins(ctx context.Context, text string) {
	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, id := range n.adminIDs {
		id := id
		g.Go(func() error {
			if err := n.sender.Send(ctx, id, text); err != nil {
				zap.L().Warn("admin notification dropped", zap.Int64("telegram_id", id), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
}
