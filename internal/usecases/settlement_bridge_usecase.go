package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/providers"
	"payos.backend/internal/domain/repositories"
	"payos.backend/internal/rails"
	"payos.backend/pkg/logger"
	"payos.backend/pkg/metrics"
	"payos.backend/pkg/utils"
)

// SettlementBridgeConfig holds the injected pricing and polling settings.
type SettlementBridgeConfig struct {
	FeeBasisPoints      int64
	MinimumUSDC         decimal.Decimal
	ExchangeRates       map[string]decimal.Decimal
	QuoteTTL            time.Duration
	DepositPollInterval time.Duration
	DepositTimeout      time.Duration
}

// PayoutWebhook is a payout status notification from the payout provider.
type PayoutWebhook struct {
	PayoutID string          `json:"payoutId"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// Provider payout statuses.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusConfirmed = "confirmed"
	PayoutStatusComplete  = "complete"
	PayoutStatusFailed    = "failed"
	PayoutStatusReturned  = "returned"
)

var payoutStatusMap = map[string]entities.SettlementStatus{
	PayoutStatusConfirmed: entities.SettlementStatusPayoutCreated,
	PayoutStatusComplete:  entities.SettlementStatusCompleted,
	PayoutStatusFailed:    entities.SettlementStatusFailed,
	PayoutStatusReturned:  entities.SettlementStatusFailed,
}

// SettlementBridgeUsecase converts confirmed USDC transfers into fiat payouts
// and reconciles them from payout webhooks or balance polling.
type SettlementBridgeUsecase struct {
	settlementRepo repositories.SettlementRepository
	uow            repositories.UnitOfWork
	payouts        providers.PayoutProvider
	balances       providers.BalanceReader
	cfg            SettlementBridgeConfig
	confirms       singleflight.Group
}

// settlementNow is the clock used for quote expiry and completion times.
var settlementNow = time.Now

// NewSettlementBridgeUsecase creates a new settlement bridge usecase.
// balances may be nil when no on-chain reader is configured.
func NewSettlementBridgeUsecase(
	settlementRepo repositories.SettlementRepository,
	uow repositories.UnitOfWork,
	payouts providers.PayoutProvider,
	balances providers.BalanceReader,
	cfg SettlementBridgeConfig,
) *SettlementBridgeUsecase {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if cfg.DepositPollInterval <= 0 {
		cfg.DepositPollInterval = DefaultDepositPollInterval
	}
	if cfg.DepositTimeout <= 0 {
		cfg.DepositTimeout = DefaultDepositTimeout
	}
	return &SettlementBridgeUsecase{
		settlementRepo: settlementRepo,
		uow:            uow,
		payouts:        payouts,
		balances:       balances,
		cfg:            cfg,
	}
}

// Quote prices a USDC amount on a rail. The fee is deducted before
// conversion and the fiat amount is truncated to cents.
func (u *SettlementBridgeUsecase) Quote(ctx context.Context, amount decimal.Decimal, rail entities.SettlementRail) (*entities.Quote, error) {
	if !rail.Valid() {
		return nil, domainerrors.InvalidRail(string(rail))
	}
	if !amount.IsPositive() {
		return nil, domainerrors.InvalidAmount("amount must be positive")
	}
	currency := rail.FiatCurrency()
	rate, ok := u.cfg.ExchangeRates[currency]
	if !ok || !rate.IsPositive() {
		return nil, domainerrors.ExchangeRateUnavailable(currency)
	}

	usdc := amount.Truncate(entities.USDCScale)
	fee := usdc.Mul(decimal.NewFromInt(u.cfg.FeeBasisPoints)).Div(decimal.NewFromInt(10000)).Truncate(entities.USDCScale)
	net := usdc.Sub(fee)
	return &entities.Quote{
		USDCAmount:        usdc,
		BridgeFee:         fee,
		NetAmount:         net,
		ExchangeRate:      rate,
		FiatAmount:        net.Mul(rate).Truncate(entities.FiatScale),
		FiatCurrency:      currency,
		Rail:              rail,
		EstimatedDelivery: rail.EstimatedDelivery(),
		ExpiresAt:         settlementNow().Add(u.cfg.QuoteTTL).UTC().Truncate(time.Second),
	}, nil
}

// Settle pays out one inbound transfer. Calling it again for the same
// transfer returns the settlement already created for it.
func (u *SettlementBridgeUsecase) Settle(ctx context.Context, req entities.SettleRequest) (*entities.BridgeSettlement, error) {
	req.TransferID = strings.TrimSpace(req.TransferID)
	if req.TransferID == "" {
		return nil, domainerrors.BadRequest("transferId is required")
	}
	if !req.Rail.Valid() {
		return nil, domainerrors.InvalidRail(string(req.Rail))
	}
	if err := rails.ValidateRecipient(req.Rail, req.Recipient); err != nil {
		return nil, err
	}
	if req.Amount.LessThan(u.cfg.MinimumUSDC) {
		return nil, domainerrors.AmountTooLow(req.Amount.StringFixed(entities.FiatScale), u.cfg.MinimumUSDC.StringFixed(entities.FiatScale))
	}

	existing, err := u.settlementRepo.GetByTransferID(ctx, req.TransferID)
	if err == nil {
		return settledOrFailed(existing)
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.InternalError(err)
	}

	quote, err := u.Quote(ctx, req.Amount, req.Rail)
	if err != nil {
		return nil, err
	}

	now := settlementNow()
	s := &entities.BridgeSettlement{
		ID:             utils.GenerateUUIDv7(),
		X402TransferID: req.TransferID,
		USDCAmount:     quote.USDCAmount,
		BridgeFee:      quote.BridgeFee,
		ExchangeRate:   quote.ExchangeRate,
		FiatAmount:     quote.FiatAmount,
		FiatCurrency:   quote.FiatCurrency,
		Rail:           req.Rail,
		Recipient:      req.Recipient,
		Status:         entities.SettlementStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.settlementRepo.Create(ctx, s); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			if winner, getErr := u.settlementRepo.GetByTransferID(ctx, req.TransferID); getErr == nil {
				return settledOrFailed(winner)
			}
		}
		return nil, domainerrors.InternalError(err)
	}
	logger.Info(ctx, "Settlement created",
		zap.String("settlement_id", s.ID.String()),
		zap.String("transfer_id", s.X402TransferID),
		zap.String("usdc_amount", s.USDCAmount.StringFixed(entities.USDCScale)),
		zap.String("fiat_amount", s.FiatAmount.StringFixed(entities.FiatScale)),
		zap.String("rail", string(s.Rail)),
	)

	if txHash := strings.TrimSpace(req.TxHash); txHash != "" {
		if err := u.transition(ctx, s, entities.SettlementUpdate{
			Status:     entities.SettlementStatusUSDCReceived,
			X402TxHash: null.StringFrom(txHash),
		}); err != nil {
			return nil, domainerrors.InternalError(err)
		}
	} else if req.AwaitDeposit {
		logger.Info(ctx, "Settlement awaiting deposit", zap.String("settlement_id", s.ID.String()))
		return u.GetSettlement(ctx, s.ID)
	}

	if err := u.createPayout(ctx, s); err != nil {
		return nil, err
	}
	return u.GetSettlement(ctx, s.ID)
}

// settledOrFailed surfaces a failed settlement as its payout error so a
// repeated request for the same transfer cannot read as in flight.
func settledOrFailed(s *entities.BridgeSettlement) (*entities.BridgeSettlement, error) {
	if s.Status != entities.SettlementStatusFailed {
		return s, nil
	}
	reason := s.ErrorMessage.String
	if reason == "" {
		reason = "settlement failed"
	}
	return nil, domainerrors.PayoutFailed(s.ID.String(), errors.New(reason))
}

// createPayout requests the fiat payout for s and records its reference.
// The settlement id is the provider idempotency key.
func (u *SettlementBridgeUsecase) createPayout(ctx context.Context, s *entities.BridgeSettlement) error {
	payout, err := u.payouts.CreatePayout(ctx, providers.PayoutRequest{
		IdempotencyKey: s.ID.String(),
		Amount:         s.FiatAmount,
		Currency:       s.FiatCurrency,
		Rail:           s.Rail,
		Recipient:      s.Recipient,
		Metadata: map[string]string{
			"settlement_id": s.ID.String(),
			"transfer_id":   s.X402TransferID,
		},
	})
	if err != nil {
		u.markFailed(ctx, s, entities.SettlementUpdate{ErrorMessage: null.StringFrom(err.Error())})
		return domainerrors.PayoutFailed(s.ID.String(), err)
	}

	if err := u.transition(ctx, s, entities.SettlementUpdate{
		Status:          entities.SettlementStatusPayoutCreated,
		CirclePayoutID:  null.StringFrom(payout.ID),
		ProviderPayload: payout.Raw,
	}); err != nil {
		// the payout exists remotely; keep its reference for reconciliation
		u.markFailed(ctx, s, entities.SettlementUpdate{
			CirclePayoutID: null.StringFrom(payout.ID),
			ErrorMessage:   null.StringFrom("payout created but local update failed: " + err.Error()),
		})
		return domainerrors.InternalError(err)
	}
	logger.Info(ctx, "Settlement payout created",
		zap.String("settlement_id", s.ID.String()),
		zap.String("payout_id", payout.ID),
	)
	return nil
}

// transition applies a conditional status move and tracks s.Status.
func (u *SettlementBridgeUsecase) transition(ctx context.Context, s *entities.BridgeSettlement, update entities.SettlementUpdate) error {
	from := s.Status
	if err := u.settlementRepo.Transition(ctx, s.ID, from, update); err != nil {
		return err
	}
	s.Status = update.Status
	metrics.SettlementTransitions.WithLabelValues(string(from), string(update.Status)).Inc()
	return nil
}

// markFailed is the compensating write after an uncertain external call.
func (u *SettlementBridgeUsecase) markFailed(ctx context.Context, s *entities.BridgeSettlement, update entities.SettlementUpdate) {
	update.Status = entities.SettlementStatusFailed
	if err := u.transition(ctx, s, update); err != nil {
		logger.Error(ctx, "Failed to record settlement failure",
			zap.String("settlement_id", s.ID.String()),
			zap.String("error_message", update.ErrorMessage.String),
			zap.Error(err),
		)
		return
	}
	logger.Warn(ctx, "Settlement failed",
		zap.String("settlement_id", s.ID.String()),
		zap.String("error_message", update.ErrorMessage.String),
	)
}

// HandlePayoutWebhook applies a provider payout status. Unknown statuses,
// stale updates and repeats of the current status change nothing.
func (u *SettlementBridgeUsecase) HandlePayoutWebhook(ctx context.Context, event PayoutWebhook) (*entities.BridgeSettlement, error) {
	if strings.TrimSpace(event.PayoutID) == "" {
		return nil, domainerrors.BadRequest("payoutId is required")
	}
	status := strings.ToLower(strings.TrimSpace(event.Status))
	target, known := payoutStatusMap[status]

	var result *entities.BridgeSettlement
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		s, err := u.settlementRepo.GetByPayoutID(u.uow.WithLock(txCtx), event.PayoutID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) {
				return domainerrors.SettlementNotFound(event.PayoutID)
			}
			return err
		}
		result = s

		if !known {
			if status != PayoutStatusPending {
				metrics.SettlementWebhookUnknownStatus.WithLabelValues(status).Inc()
				logger.Warn(ctx, "Unknown payout status; settlement left unchanged",
					zap.String("settlement_id", s.ID.String()),
					zap.String("payout_id", event.PayoutID),
					zap.String("status", event.Status),
				)
			}
			return nil
		}
		if !s.Status.CanTransitionTo(target) {
			return nil
		}

		update := entities.SettlementUpdate{Status: target}
		switch target {
		case entities.SettlementStatusCompleted:
			update.CompletedAt = null.TimeFrom(settlementNow())
			update.ProviderPayload = webhookPayload(event)
		case entities.SettlementStatusFailed:
			reason := event.Reason
			if reason == "" {
				reason = "payout " + status
			}
			update.ErrorMessage = null.StringFrom(status + ": " + reason)
			update.ProviderPayload = webhookPayload(event)
		}
		if err := u.transition(txCtx, s, update); err != nil {
			return err
		}
		logger.Info(ctx, "Settlement updated from payout webhook",
			zap.String("settlement_id", s.ID.String()),
			zap.String("status", string(target)),
		)
		return nil
	})
	if err != nil {
		return nil, domainerrors.AsAppError(err)
	}
	return u.GetSettlement(ctx, result.ID)
}

func webhookPayload(event PayoutWebhook) json.RawMessage {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	return raw
}

// GetSettlement returns a settlement by id.
func (u *SettlementBridgeUsecase) GetSettlement(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error) {
	s, err := u.settlementRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.SettlementNotFound(id.String())
		}
		return nil, domainerrors.InternalError(err)
	}
	return s, nil
}

// ListSettlements returns one page of settlements, newest first.
func (u *SettlementBridgeUsecase) ListSettlements(ctx context.Context, filter entities.SettlementFilter, pagination utils.PaginationParams) ([]*entities.BridgeSettlement, int64, error) {
	if filter.Rail != "" && !filter.Rail.Valid() {
		return nil, 0, domainerrors.InvalidRail(string(filter.Rail))
	}
	items, total, err := u.settlementRepo.List(ctx, filter, pagination)
	if err != nil {
		return nil, 0, domainerrors.InternalError(err)
	}
	return items, total, nil
}

// DetectDeposit polls the USDC balance until it has grown by at least 99%
// of expected or timeout elapses. A timeout is not an error: the result
// reports Detected=false with the last observed balance.
func (u *SettlementBridgeUsecase) DetectDeposit(ctx context.Context, expected, previousBalance decimal.Decimal, timeout time.Duration) (*entities.DepositDetection, error) {
	if u.balances == nil {
		return nil, domainerrors.BadRequest("deposit detection is not configured")
	}
	if timeout <= 0 {
		timeout = u.cfg.DepositTimeout
	}
	threshold := expected.Mul(decimal.RequireFromString(DepositTolerance))
	result := &entities.DepositDetection{
		PreviousBalance: previousBalance,
		CurrentBalance:  previousBalance,
		Increase:        decimal.Zero,
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(u.cfg.DepositPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			logger.Info(ctx, "Deposit not detected before timeout",
				zap.String("expected", expected.String()),
				zap.String("current_balance", result.CurrentBalance.String()),
			)
			return result, nil
		case <-ticker.C:
			balance, err := u.balances.USDCBalance(ctx)
			if err != nil {
				logger.Warn(ctx, "Balance read failed", zap.Error(err))
				continue
			}
			result.CurrentBalance = balance
			result.Increase = balance.Sub(previousBalance)
			if result.Increase.GreaterThanOrEqual(threshold) {
				result.Detected = true
				return result, nil
			}
		}
	}
}

type confirmResult struct {
	settlement *entities.BridgeSettlement
	detection  *entities.DepositDetection
}

// ConfirmDeposit waits for the settlement's USDC to land, records it and
// creates the payout. A settlement already marked usdc_received without a
// payout resumes at the payout step without polling.
// Concurrent calls for the same settlement and baseline share one poll.
func (u *SettlementBridgeUsecase) ConfirmDeposit(ctx context.Context, id uuid.UUID, previousBalance decimal.Decimal, timeout time.Duration) (*entities.BridgeSettlement, *entities.DepositDetection, error) {
	key := id.String() + "|" + previousBalance.String()
	v, err, _ := u.confirms.Do(key, func() (interface{}, error) {
		s, detection, err := u.confirmDeposit(ctx, id, previousBalance, timeout)
		return confirmResult{settlement: s, detection: detection}, err
	})
	res, _ := v.(confirmResult)
	return res.settlement, res.detection, err
}

func (u *SettlementBridgeUsecase) confirmDeposit(ctx context.Context, id uuid.UUID, previousBalance decimal.Decimal, timeout time.Duration) (*entities.BridgeSettlement, *entities.DepositDetection, error) {
	s, err := u.GetSettlement(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var detection *entities.DepositDetection
	switch {
	case s.Status == entities.SettlementStatusPending:
		detection, err = u.DetectDeposit(ctx, s.USDCAmount, previousBalance, timeout)
		if err != nil {
			return nil, nil, domainerrors.AsAppError(err)
		}
		if !detection.Detected {
			return s, detection, domainerrors.DepositNotDetected(s.ID.String())
		}
		if err := u.transition(ctx, s, entities.SettlementUpdate{Status: entities.SettlementStatusUSDCReceived}); err != nil {
			if errors.Is(err, domainerrors.ErrConflict) {
				current, getErr := u.GetSettlement(ctx, id)
				if getErr != nil {
					return nil, detection, getErr
				}
				return current, detection, nil
			}
			return nil, detection, domainerrors.InternalError(err)
		}
		logger.Info(ctx, "Settlement deposit confirmed",
			zap.String("settlement_id", s.ID.String()),
			zap.String("increase", detection.Increase.String()),
		)
	case s.Status == entities.SettlementStatusUSDCReceived && !s.CirclePayoutID.Valid:
		logger.Info(ctx, "Resuming settlement payout", zap.String("settlement_id", s.ID.String()))
	default:
		return nil, nil, domainerrors.InvalidSettlementStatus(s.ID.String(), string(s.Status))
	}

	if err := u.createPayout(ctx, s); err != nil {
		return nil, detection, err
	}
	updated, err := u.GetSettlement(ctx, id)
	return updated, detection, err
}
