package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/keybotdev/keybot/internal/nowpay"
	"github.com/keybotdev/keybot/internal/service/depositservice"
	"github.com/keybotdev/keybot/pkg/money"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type DepositService interface {
	HandleNotification(ctx context.Context, n *depositservice.Notification) error
}

// Handler terminates provider callbacks. Everything user-facing goes through
// the bot; this surface exists only for machine-to-machine notifications.
type Handler struct {
	service DepositService
	signer  *nowpay.Signer
}

func New(service DepositService, signer *nowpay.Signer) *Handler {
	return &Handler{
		service: service,
		signer:  signer,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook/nowpayments", h.handleNotification)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

type notificationPayload struct {
	PaymentID     nowpay.ID `json:"payment_id"`
	PaymentStatus string    `json:"payment_status"`
	OrderID       string    `json:"order_id"`
	OutcomeAmount float64   `json:"outcome_amount"`
}

// handleNotification verifies the signature over the raw body before anything
// is parsed for use. A 5xx tells the provider to redeliver; replays of an
// already-settled payment get a 200 so redelivery stops.
func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "can't read body", http.StatusBadRequest)
		return
	}

	if !h.signer.Verify(body, r.Header.Get("x-nowpayments-sig")) {
		zap.L().Warn("notification with bad signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	err = h.service.HandleNotification(r.Context(), &depositservice.Notification{
		ExternalID: payload.PaymentID.String(),
		Status:     payload.PaymentStatus,
		OrderID:    payload.OrderID,
		OutcomeUSD: money.ToCents(payload.OutcomeAmount),
	})
	switch {
	case err == nil, errors.Is(err, depositservice.ErrAlreadyProcessed):
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, depositservice.ErrDepositNotFound):
		http.Error(w, "unknown payment", http.StatusNotFound)
	default:
		zap.L().Error("notification processing failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
