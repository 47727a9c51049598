package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func TestNotifyUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := NewMockMessageSender(ctrl)
	notifier := New(sender, nil)

	// A failed send is swallowed.
	sender.EXPECT().Send(gomock.Any(), int64(42), "hello").Return(errors.New("blocked by user"))
	notifier.NotifyUser(context.Background(), 42, "hello")
}

func TestNotifyAdminsIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := NewMockMessageSender(ctrl)
	notifier := New(sender, []int64{1, 2, 3})

	var mu sync.Mutex
	delivered := map[int64]bool{}

	sender.EXPECT().Send(gomock.Any(), gomock.Any(), "stock alert").DoAndReturn(
		func(_ context.Context, id int64, _ string) error {
			mu.Lock()
			delivered[id] = true
			mu.Unlock()
			if id == 2 {
				return errors.New("bot was blocked")
			}
			return nil
		}).Times(3)

	notifier.NotifyAdmins(context.Background(), "stock alert")

	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true}, delivered)
}
