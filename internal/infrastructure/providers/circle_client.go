package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	domain "payos.backend/internal/domain/providers"
)

const (
	DefaultCircleBaseURL = "https://api.circle.com"
	defaultCircleTimeout = 15 * time.Second
	maxCircleBody        = 1 << 20
)

// circleAPI is the shared JSON-over-HTTPS transport for Circle endpoints
type circleAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newCircleAPI(baseURL, apiKey string, httpClient *http.Client) (*circleAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("circle api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultCircleBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultCircleTimeout}
	}
	return &circleAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}, nil
}

type circleEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// do sends body (if any) and decodes the "data" member into out. It returns
// the raw data document for callers that persist provider payloads.
func (a *circleAPI) do(ctx context.Context, method, path string, body, out interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode circle request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "circle", Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCircleBody))
	if err != nil {
		return nil, &ProviderError{Provider: "circle", Message: err.Error(), Retryable: true}
	}

	var env circleEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("failed to decode circle response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		code := ""
		if env.Code != 0 {
			code = fmt.Sprint(env.Code)
		}
		return nil, &ProviderError{
			Provider:  "circle",
			Code:      code,
			Message:   msg,
			Retryable: resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode circle data: %w", err)
		}
	}
	return env.Data, nil
}

type circleMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func minorToMoney(amount int64, currency string) circleMoney {
	return circleMoney{
		Amount:   decimal.New(amount, -2).StringFixed(2),
		Currency: strings.ToUpper(currency),
	}
}

func moneyToMinor(m circleMoney) int64 {
	d, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return 0
	}
	return d.Shift(2).IntPart()
}

// CircleCredentials is the decrypted credential document for the circle family
type CircleCredentials struct {
	APIKey   string `json:"apiKey"`
	BaseURL  string `json:"baseUrl,omitempty"`
	WalletID string `json:"walletId,omitempty"`
	Chain    string `json:"chain,omitempty"`
}

// CircleClient takes USDC payments into a tenant's Circle custody wallet
type CircleClient struct {
	api   *circleAPI
	chain string
}

// NewCircleClient creates a client for one tenant. httpClient may be nil.
func NewCircleClient(creds CircleCredentials, httpClient *http.Client) (*CircleClient, error) {
	api, err := newCircleAPI(creds.BaseURL, creds.APIKey, httpClient)
	if err != nil {
		return nil, err
	}
	chain := creds.Chain
	if chain == "" {
		chain = "BASE"
	}
	return &CircleClient{api: api, chain: chain}, nil
}

type circlePaymentIntent struct {
	ID       string      `json:"id"`
	Amount   circleMoney `json:"amountPaid"`
	Expected circleMoney `json:"amount"`
	Timeline []struct {
		Status string `json:"status"`
	} `json:"timeline"`
	Status string `json:"status"`
}

func (p *circlePaymentIntent) state() string {
	if p.Status != "" {
		return p.Status
	}
	if len(p.Timeline) > 0 {
		return p.Timeline[0].Status
	}
	return ""
}

// CreatePaymentIntent opens a blockchain payment intent on the tenant wallet.
func (c *CircleClient) CreatePaymentIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	body := map[string]interface{}{
		"idempotencyKey":     req.IdempotencyKey,
		"amount":             minorToMoney(req.Amount, "USD"),
		"settlementCurrency": "USD",
		"paymentMethods": []map[string]string{
			{"type": "blockchain", "chain": c.chain},
		},
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	var pi circlePaymentIntent
	if _, err := c.api.do(ctx, http.MethodPost, "/v1/paymentIntents", body, &pi); err != nil {
		return nil, err
	}
	return &domain.Intent{ID: pi.ID, Status: circleStatus(pi.state()), Amount: req.Amount}, nil
}

// CapturePayment reads the intent: Circle settles on-chain payments itself,
// so capture reports whether the funds have landed.
func (c *CircleClient) CapturePayment(ctx context.Context, intentID string, amount int64) (*domain.CaptureResult, error) {
	var pi circlePaymentIntent
	if _, err := c.api.do(ctx, http.MethodGet, "/v1/paymentIntents/"+intentID, nil, &pi); err != nil {
		return nil, err
	}
	captured := moneyToMinor(pi.Amount)
	status := circleStatus(pi.state())
	if status == domain.StatusSucceeded && captured == 0 {
		captured = amount
	}
	return &domain.CaptureResult{ID: pi.ID, Status: status, AmountCaptured: captured}, nil
}

// GetPaymentIntent reads the intent without treating it as a capture.
func (c *CircleClient) GetPaymentIntent(ctx context.Context, intentID string) (*domain.Intent, error) {
	var pi circlePaymentIntent
	if _, err := c.api.do(ctx, http.MethodGet, "/v1/paymentIntents/"+intentID, nil, &pi); err != nil {
		return nil, err
	}
	return &domain.Intent{ID: pi.ID, Status: circleStatus(pi.state()), Amount: moneyToMinor(pi.Expected)}, nil
}

// RefundPayment returns USDC to the payer's source address.
func (c *CircleClient) RefundPayment(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	body := map[string]interface{}{
		"idempotencyKey": req.IdempotencyKey,
		"amount":         minorToMoney(req.Amount, "USD"),
		"toAmount":       minorToMoney(req.Amount, "USD"),
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if _, err := c.api.do(ctx, http.MethodPost, "/v1/paymentIntents/"+req.IntentID+"/refund", body, &out); err != nil {
		return nil, err
	}
	return &domain.RefundResult{ID: out.ID, Status: circleStatus(out.Status), Amount: req.Amount}, nil
}

func circleStatus(s string) string {
	switch strings.ToLower(s) {
	case "complete", "paid", "confirmed":
		return domain.StatusSucceeded
	case "failed", "expired":
		return domain.StatusFailed
	case "canceled", "cancelled":
		return domain.StatusCanceled
	case "action_required":
		return domain.StatusRequiresAction
	}
	return domain.StatusPending
}
