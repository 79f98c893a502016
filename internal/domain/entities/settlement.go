package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// SettlementRail is a local fiat payout rail.
type SettlementRail string

const (
	SettlementRailPix  SettlementRail = "pix"
	SettlementRailSPEI SettlementRail = "spei"
)

// FiatCurrency returns the currency paid out on the rail, or "" for unknown rails.
func (r SettlementRail) FiatCurrency() string {
	switch r {
	case SettlementRailPix:
		return "BRL"
	case SettlementRailSPEI:
		return "MXN"
	}
	return ""
}

// EstimatedDelivery is a display-only delivery estimate.
func (r SettlementRail) EstimatedDelivery() string {
	switch r {
	case SettlementRailPix:
		return "instant"
	case SettlementRailSPEI:
		return "same business day"
	}
	return ""
}

// Valid reports whether the rail is supported.
func (r SettlementRail) Valid() bool {
	return r.FiatCurrency() != ""
}

// SettlementStatus represents the lifecycle of a bridge settlement.
type SettlementStatus string

const (
	SettlementStatusPending       SettlementStatus = "pending"
	SettlementStatusUSDCReceived  SettlementStatus = "usdc_received"
	SettlementStatusPayoutCreated SettlementStatus = "payout_created"
	SettlementStatusCompleted     SettlementStatus = "completed"
	SettlementStatusFailed        SettlementStatus = "failed"
)

var settlementRank = map[SettlementStatus]int{
	SettlementStatusPending:       0,
	SettlementStatusUSDCReceived:  1,
	SettlementStatusPayoutCreated: 2,
	SettlementStatusCompleted:     3,
}

// IsTerminal reports whether the status absorbs every later update.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusCompleted || s == SettlementStatusFailed
}

// CanTransitionTo allows only forward moves; failed is reachable from any
// non-terminal state.
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	if next == SettlementStatusFailed {
		return true
	}
	from, ok := settlementRank[s]
	if !ok {
		return false
	}
	to, ok := settlementRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Recipient is the fiat payout destination.
type Recipient struct {
	PixKey     string `json:"pixKey,omitempty"`
	PixKeyType string `json:"pixKeyType,omitempty"`
	CLABE      string `json:"clabe,omitempty"`
	Name       string `json:"name"`
	TaxID      string `json:"taxId,omitempty"`
	RFC        string `json:"rfc,omitempty"`
	BankName   string `json:"bankName,omitempty"`
}

// Quote is the computed conversion of a USDC amount to fiat on a rail.
type Quote struct {
	USDCAmount        decimal.Decimal `json:"usdcAmount"`
	BridgeFee         decimal.Decimal `json:"bridgeFee"`
	NetAmount         decimal.Decimal `json:"netAmount"`
	ExchangeRate      decimal.Decimal `json:"exchangeRate"`
	FiatAmount        decimal.Decimal `json:"fiatAmount"`
	FiatCurrency      string          `json:"fiatCurrency"`
	Rail              SettlementRail  `json:"rail"`
	EstimatedDelivery string          `json:"estimatedDelivery"`
	ExpiresAt         time.Time       `json:"expiresAt"`
}

// Display scales for serialized amounts.
const (
	USDCScale = 6
	FiatScale = 2
)

// MarshalJSON renders amounts at fixed scale so identical quotes serialize
// byte-for-byte identically.
func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		USDCAmount        string         `json:"usdcAmount"`
		BridgeFee         string         `json:"bridgeFee"`
		NetAmount         string         `json:"netAmount"`
		ExchangeRate      string         `json:"exchangeRate"`
		FiatAmount        string         `json:"fiatAmount"`
		FiatCurrency      string         `json:"fiatCurrency"`
		Rail              SettlementRail `json:"rail"`
		EstimatedDelivery string         `json:"estimatedDelivery"`
		ExpiresAt         time.Time      `json:"expiresAt"`
	}{
		USDCAmount:        q.USDCAmount.StringFixed(USDCScale),
		BridgeFee:         q.BridgeFee.StringFixed(USDCScale),
		NetAmount:         q.NetAmount.StringFixed(USDCScale),
		ExchangeRate:      q.ExchangeRate.String(),
		FiatAmount:        q.FiatAmount.StringFixed(FiatScale),
		FiatCurrency:      q.FiatCurrency,
		Rail:              q.Rail,
		EstimatedDelivery: q.EstimatedDelivery,
		ExpiresAt:         q.ExpiresAt,
	})
}

// BridgeSettlement is one USDC to fiat conversion and payout.
type BridgeSettlement struct {
	ID              uuid.UUID        `json:"id"`
	X402TransferID  string           `json:"x402TransferId"`
	X402TxHash      null.String      `json:"x402TxHash,omitempty"`
	USDCAmount      decimal.Decimal  `json:"usdcAmount"`
	BridgeFee       decimal.Decimal  `json:"bridgeFee"`
	ExchangeRate    decimal.Decimal  `json:"exchangeRate"`
	FiatAmount      decimal.Decimal  `json:"fiatAmount"`
	FiatCurrency    string           `json:"fiatCurrency"`
	Rail            SettlementRail   `json:"rail"`
	Recipient       Recipient        `json:"recipient"`
	CirclePayoutID  null.String      `json:"circlePayoutId,omitempty"`
	Status          SettlementStatus `json:"status"`
	ErrorMessage    null.String      `json:"errorMessage,omitempty"`
	ProviderPayload json.RawMessage  `json:"providerPayload,omitempty"`
	CompletedAt     null.Time        `json:"completedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// MarshalJSON renders amounts at their display scale.
func (s BridgeSettlement) MarshalJSON() ([]byte, error) {
	type alias BridgeSettlement
	return json.Marshal(struct {
		alias
		USDCAmount string `json:"usdcAmount"`
		BridgeFee  string `json:"bridgeFee"`
		FiatAmount string `json:"fiatAmount"`
	}{
		alias:      alias(s),
		USDCAmount: s.USDCAmount.StringFixed(USDCScale),
		BridgeFee:  s.BridgeFee.StringFixed(USDCScale),
		FiatAmount: s.FiatAmount.StringFixed(FiatScale),
	})
}

// SettlementUpdate carries the fields written alongside a status transition.
type SettlementUpdate struct {
	Status          SettlementStatus
	X402TxHash      null.String
	CirclePayoutID  null.String
	ErrorMessage    null.String
	ProviderPayload json.RawMessage
	CompletedAt     null.Time
}

// SettleRequest asks the bridge to pay out one confirmed inbound transfer.
type SettleRequest struct {
	TransferID string          `json:"transferId"`
	Amount     decimal.Decimal `json:"amount"`
	Rail       SettlementRail  `json:"rail"`
	Recipient  Recipient       `json:"recipient"`
	TxHash     string          `json:"x402TxHash,omitempty"`
	// AwaitDeposit leaves the settlement pending until ConfirmDeposit
	// observes the USDC on chain. Ignored when TxHash is set.
	AwaitDeposit bool `json:"awaitDeposit,omitempty"`
}

// SettlementFilter narrows settlement listings.
type SettlementFilter struct {
	Status SettlementStatus
	Rail   SettlementRail
}

// DepositDetection is the result of polling for an incoming USDC deposit.
type DepositDetection struct {
	Detected        bool            `json:"detected"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
	Increase        decimal.Decimal `json:"increase"`
}
