package nowpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/keybotdev/keybot/pkg/clients"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Payment statuses as the provider reports them.
const (
	StatusWaiting       = "waiting"
	StatusConfirming    = "confirming"
	StatusConfirmed     = "confirmed"
	StatusSending       = "sending"
	StatusPartiallyPaid = "partially_paid"
	StatusFinished      = "finished"
	StatusFailed        = "failed"
	StatusRefunded      = "refunded"
	StatusExpired       = "expired"
)

// ID tolerates the provider's habit of returning payment ids as a JSON string
// on one endpoint and a JSON number on another.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = ID(strings.Trim(string(b), `"`))
	return nil
}

func (id ID) String() string { return string(id) }

type Payment struct {
	PaymentID     ID      `json:"payment_id"`
	PaymentStatus string  `json:"payment_status"`
	PayAddress    string  `json:"pay_address"`
	PayAmount     float64 `json:"pay_amount"`
	PayCurrency   string  `json:"pay_currency"`
	PriceAmount   float64 `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	OrderID       string  `json:"order_id"`
	OutcomeAmount float64 `json:"outcome_amount"`
}

type createPaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  clients.HTTPClientI
	rl      ratelimit.Limiter
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  clients.NewHTTPClient(),
		rl:      ratelimit.New(5),
	}
}

// CreatePayment registers an invoice for priceUSD (integer cents) payable in
// payCurrency. internalRef travels as the provider's order_id and comes back
// in every notification for that payment.
func (c *Client) CreatePayment(ctx context.Context, priceUSD int64, payCurrency, internalRef string) (*Payment, error) {
	body, err := json.Marshal(createPaymentRequest{
		PriceAmount:      float64(priceUSD) / 100,
		PriceCurrency:    "usd",
		PayCurrency:      payCurrency,
		OrderID:          internalRef,
		OrderDescription: "Balance top-up",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// PaymentStatus polls the provider for the current state of a payment.
func (c *Client) PaymentStatus(ctx context.Context, externalID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payment/"+externalID, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	c.rl.Take()
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		zap.L().Error("provider request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return nil, err
	}

	body, err := clients.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		zap.L().Error("provider returned non-2xx",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, fmt.Errorf("provider responded %d: %s", resp.StatusCode, body)
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &payment, nil
}
