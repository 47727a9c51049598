package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keybotdev/keybot/internal/nowpay"
	"github.com/keybotdev/keybot/internal/service/depositservice"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

const ipnSecret = "super-secret"

func newTestHandler(t *testing.T) (*Handler, *MockDepositService) {
	ctrl := gomock.NewController(t)
	service := NewMockDepositService(ctrl)
	handler := New(service, nowpay.NewSigner(ipnSecret))
	defer ctrl.Finish()
	return handler, service
}

func signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	sig, err := nowpay.NewSigner(ipnSecret).Sign(body)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/nowpayments", bytes.NewReader(body))
	req.Header.Set("x-nowpayments-sig", sig)
	return req
}

func TestHandleNotification(t *testing.T) {
	handler, service := newTestHandler(t)
	router := handler.Router()

	body := []byte(`{"payment_id":5745459419,"payment_status":"finished","order_id":"dep-1","price_amount":9.99,"outcome_amount":10.42}`)

	tests := []struct {
		name         string
		request      func() *http.Request
		prepareMock  func()
		expectedCode int
	}{
		{
			name:    "Verified notification processed",
			request: func() *http.Request { return signedRequest(t, body) },
			prepareMock: func() {
				service.EXPECT().HandleNotification(gomock.Any(), &depositservice.Notification{
					ExternalID: "5745459419",
					Status:     "finished",
					OrderID:    "dep-1",
					OutcomeUSD: 1042,
				}).Return(nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Bad signature rejected before the service sees it",
			request: func() *http.Request {
				req := signedRequest(t, body)
				req.Header.Set("x-nowpayments-sig", "deadbeef")
				return req
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "Tampered body rejected",
			request: func() *http.Request {
				req := signedRequest(t, body)
				tampered := bytes.Replace(body, []byte("10.42"), []byte("99999"), 1)
				req.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tampered)).Body
				return req
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:    "Replay acknowledged without effect",
			request: func() *http.Request { return signedRequest(t, body) },
			prepareMock: func() {
				service.EXPECT().HandleNotification(gomock.Any(), gomock.Any()).
					Return(depositservice.ErrAlreadyProcessed)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:    "Unknown payment",
			request: func() *http.Request { return signedRequest(t, body) },
			prepareMock: func() {
				service.EXPECT().HandleNotification(gomock.Any(), gomock.Any()).
					Return(depositservice.ErrDepositNotFound)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:    "Processing failure asks for redelivery",
			request: func() *http.Request { return signedRequest(t, body) },
			prepareMock: func() {
				service.EXPECT().HandleNotification(gomock.Any(), gomock.Any()).
					Return(errors.New("db down"))
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.request())
			assert.Equal(t, tt.expectedCode, rec.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusOK, rec.Code)
}
