package providers

import (
	"context"
	"fmt"
	"net/http"

	"payos.backend/internal/domain/entities"
	domain "payos.backend/internal/domain/providers"
)

// CirclePayouts sends local-rail fiat payouts from the platform account
type CirclePayouts struct {
	api *circleAPI
}

// NewCirclePayouts creates the platform payout provider. httpClient may be nil.
func NewCirclePayouts(baseURL, apiKey string, httpClient *http.Client) (*CirclePayouts, error) {
	api, err := newCircleAPI(baseURL, apiKey, httpClient)
	if err != nil {
		return nil, err
	}
	return &CirclePayouts{api: api}, nil
}

type circleDestination struct {
	Type       string `json:"type"`
	PixKey     string `json:"pixKey,omitempty"`
	PixKeyType string `json:"pixKeyType,omitempty"`
	CLABE      string `json:"clabe,omitempty"`
	Name       string `json:"name"`
	TaxID      string `json:"taxId,omitempty"`
	BankName   string `json:"bankName,omitempty"`
}

func destination(rail entities.SettlementRail, r entities.Recipient) (circleDestination, error) {
	switch rail {
	case entities.SettlementRailPix:
		return circleDestination{
			Type:       "pix",
			PixKey:     r.PixKey,
			PixKeyType: r.PixKeyType,
			Name:       r.Name,
			TaxID:      r.TaxID,
			BankName:   r.BankName,
		}, nil
	case entities.SettlementRailSPEI:
		taxID := r.RFC
		if taxID == "" {
			taxID = r.TaxID
		}
		return circleDestination{
			Type:     "spei",
			CLABE:    r.CLABE,
			Name:     r.Name,
			TaxID:    taxID,
			BankName: r.BankName,
		}, nil
	}
	return circleDestination{}, fmt.Errorf("unsupported payout rail %q", rail)
}

// CreatePayout creates one payout. Circle deduplicates on IdempotencyKey, so
// a retried request returns the original payout.
func (p *CirclePayouts) CreatePayout(ctx context.Context, req domain.PayoutRequest) (*domain.Payout, error) {
	dest, err := destination(req.Rail, req.Recipient)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"idempotencyKey": req.IdempotencyKey,
		"destination":    dest,
		"amount": circleMoney{
			Amount:   req.Amount.StringFixed(entities.FiatScale),
			Currency: req.Currency,
		},
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	raw, err := p.api.do(ctx, http.MethodPost, "/v1/payouts", body, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("circle payout response has no id")
	}
	return &domain.Payout{ID: out.ID, Status: out.Status, Raw: raw}, nil
}
