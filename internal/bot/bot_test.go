package bot

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSplitCallback(t *testing.T) {
	tests := []struct {
		data   string
		action string
		arg    string
	}{
		{data: "shop", action: "shop", arg: ""},
		{data: "product:abc-123", action: "product", arg: "abc-123"},
		{data: "dep_cur:2500:usdttrc20", action: "dep_cur", arg: "2500:usdttrc20"},
		{data: "", action: "", arg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, arg := splitCallback(tt.data)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestSessions(t *testing.T) {
	s := newSessions()
	productID := uuid.New()

	_, ok := s.get(42)
	assert.False(t, ok)

	s.set(42, session{State: stateAwaitingKeys, ProductID: productID})

	sess, ok := s.get(42)
	assert.True(t, ok)
	assert.Equal(t, stateAwaitingKeys, sess.State)
	assert.Equal(t, productID, sess.ProductID)

	// Sessions are per user.
	_, ok = s.get(43)
	assert.False(t, ok)

	s.clear(42)
	_, ok = s.get(42)
	assert.False(t, ok)
}
