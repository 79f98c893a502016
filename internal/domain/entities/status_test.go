package entities

import "testing"

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusSucceeded, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusProcessing, PaymentStatusSucceeded, true},
		{PaymentStatusProcessing, PaymentStatusPending, false},
		{PaymentStatusSucceeded, PaymentStatusRefunded, true},
		{PaymentStatusSucceeded, PaymentStatusFailed, false},
		{PaymentStatusFailed, PaymentStatusSucceeded, false},
		{PaymentStatusRefunded, PaymentStatusSucceeded, false},
		{PaymentStatusCancelled, PaymentStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
	if PaymentStatusSucceeded.IsTerminal() {
		t.Fatal("succeeded must still allow refunds")
	}
	if !PaymentStatusRefunded.IsTerminal() {
		t.Fatal("refunded should be terminal")
	}
}

func TestSettlementStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to SettlementStatus
		want     bool
	}{
		{SettlementStatusPending, SettlementStatusUSDCReceived, true},
		{SettlementStatusPending, SettlementStatusPayoutCreated, true},
		{SettlementStatusPending, SettlementStatusFailed, true},
		{SettlementStatusUSDCReceived, SettlementStatusPending, false},
		{SettlementStatusPayoutCreated, SettlementStatusPayoutCreated, false},
		{SettlementStatusPayoutCreated, SettlementStatusCompleted, true},
		{SettlementStatusCompleted, SettlementStatusFailed, false},
		{SettlementStatusFailed, SettlementStatusCompleted, false},
		{SettlementStatus("unknown"), SettlementStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestSettlementRail(t *testing.T) {
	if SettlementRailPix.FiatCurrency() != "BRL" || SettlementRailSPEI.FiatCurrency() != "MXN" {
		t.Fatal("unexpected rail currency")
	}
	if SettlementRail("ach").Valid() {
		t.Fatal("ach should not be a valid rail")
	}
}

func TestHandlerConfig_MetadataString(t *testing.T) {
	var nilRow *HandlerConfig
	if nilRow.MetadataString("x") != "" {
		t.Fatal("nil row should read empty")
	}
	row := &HandlerConfig{Metadata: map[string]interface{}{"name": "Demo", "retries": 3}}
	if got := row.MetadataString("name"); got != "Demo" {
		t.Fatalf("expected Demo got %s", got)
	}
	if got := row.MetadataString("retries"); got != "3" {
		t.Fatalf("expected 3 got %s", got)
	}
}
