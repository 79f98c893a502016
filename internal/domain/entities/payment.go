package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsTerminal reports whether no further transition is possible.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo enforces monotonic progress; succeeded -> refunded is the
// only move out of succeeded.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusProcessing || next == PaymentStatusSucceeded ||
			next == PaymentStatusFailed || next == PaymentStatusCancelled
	case PaymentStatusProcessing:
		return next == PaymentStatusSucceeded || next == PaymentStatusFailed || next == PaymentStatusCancelled
	case PaymentStatusSucceeded:
		return next == PaymentStatusRefunded
	}
	return false
}

// CaptureStatus tracks authorization capture for manual-capture payments.
type CaptureStatus string

const (
	CaptureStatusPending  CaptureStatus = "pending"
	CaptureStatusCaptured CaptureStatus = "captured"
	CaptureStatusVoided   CaptureStatus = "voided"
)

// CaptureMethod selects automatic or manual capture.
type CaptureMethod string

const (
	CaptureMethodAutomatic CaptureMethod = "automatic"
	CaptureMethodManual    CaptureMethod = "manual"
)

// Payment is a charge made through one payment handler.
type Payment struct {
	ID             uuid.UUID         `json:"id"`
	HandlerID      string            `json:"handler"`
	InstrumentID   uuid.UUID         `json:"instrumentId"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Status         PaymentStatus     `json:"status"`
	CaptureStatus  null.String       `json:"captureStatus,omitempty"`
	IdempotencyKey null.String       `json:"idempotencyKey,omitempty"`
	SettlementID   null.String       `json:"settlementId,omitempty"`
	ExternalID     null.String       `json:"externalId,omitempty"`
	TenantID       null.String       `json:"tenantId,omitempty"`
	FailureReason  null.String       `json:"failureReason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// RefundStatus represents refund status
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund is a full or partial reversal of a succeeded payment.
type Refund struct {
	ID         uuid.UUID    `json:"id"`
	PaymentID  uuid.UUID    `json:"paymentId"`
	Amount     int64        `json:"amount"`
	Currency   string       `json:"currency"`
	Status     RefundStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	ExternalID null.String  `json:"externalId,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// PaymentInstrument is a tokenized payment method or settlement destination.
type PaymentInstrument struct {
	ID        uuid.UUID              `json:"id"`
	HandlerID string                 `json:"handler"`
	Type      string                 `json:"type"`
	Currency  string                 `json:"currency"`
	Last4     string                 `json:"last4,omitempty"`
	Reusable  bool                   `json:"reusable"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// DataString returns a string field from the opaque instrument data.
func (i *PaymentInstrument) DataString(key string) string {
	if i == nil || i.Data == nil {
		return ""
	}
	if v, ok := i.Data[key].(string); ok {
		return v
	}
	return ""
}

// PaymentStatusView is the answer to a status query.
type PaymentStatusView struct {
	PaymentID     uuid.UUID     `json:"paymentId"`
	HandlerID     string        `json:"handler"`
	Status        PaymentStatus `json:"status"`
	CaptureStatus null.String   `json:"captureStatus,omitempty"`
	Amount        int64         `json:"amount"`
	RefundedTotal int64         `json:"refundedTotal"`
	Currency      string        `json:"currency"`
	SettlementID  null.String   `json:"settlementId,omitempty"`
	FailureReason null.String   `json:"failureReason,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
