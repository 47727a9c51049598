package bot

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Dialog states for flows that need a follow-up text message.
const (
	stateAwaitingDepositAmount = "awaiting_deposit_amount"
	stateAwaitingProductForm   = "awaiting_product_form"
	stateAwaitingKeys          = "awaiting_keys"
)

const sessionTTL = 10 * time.Minute

type session struct {
	State     string
	ProductID uuid.UUID
}

// sessions holds per-user dialog state. Entries expire on their own, so an
// abandoned prompt never traps the user: the next message just falls through
// to the default handler.
type sessions struct {
	store *cache.Cache
}

func newSessions() *sessions {
	return &sessions{
		store: cache.New(sessionTTL, sessionTTL/2),
	}
}

func key(telegramID int64) string {
	return strconv.FormatInt(telegramID, 10)
}

func (s *sessions) set(telegramID int64, sess session) {
	s.store.Set(key(telegramID), sess, cache.DefaultExpiration)
}

func (s *sessions) get(telegramID int64) (session, bool) {
	v, ok := s.store.Get(key(telegramID))
	if !ok {
		return session{}, false
	}
	return v.(session), true
}

func (s *sessions) clear(telegramID int64) {
	s.store.Delete(key(telegramID))
}
