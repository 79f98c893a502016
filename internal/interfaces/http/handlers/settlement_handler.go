package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/internal/usecases"
	"payos.backend/pkg/utils"
)

// maxConfirmTimeout bounds how long a confirm-deposit request may block.
const maxConfirmTimeout = 5 * time.Minute

type SettlementService interface {
	Quote(ctx context.Context, amount decimal.Decimal, rail entities.SettlementRail) (*entities.Quote, error)
	Settle(ctx context.Context, req entities.SettleRequest) (*entities.BridgeSettlement, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (*entities.BridgeSettlement, error)
	ListSettlements(ctx context.Context, filter entities.SettlementFilter, pagination utils.PaginationParams) ([]*entities.BridgeSettlement, int64, error)
	ConfirmDeposit(ctx context.Context, id uuid.UUID, previousBalance decimal.Decimal, timeout time.Duration) (*entities.BridgeSettlement, *entities.DepositDetection, error)
	HandlePayoutWebhook(ctx context.Context, event usecases.PayoutWebhook) (*entities.BridgeSettlement, error)
}

// SettlementHandler handles USDC to fiat settlement endpoints
type SettlementHandler struct {
	settlements SettlementService
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(settlements SettlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

type quoteRequest struct {
	Amount decimal.Decimal         `json:"amount"`
	Rail   entities.SettlementRail `json:"rail" binding:"required"`
}

// Quote prices a USDC amount on a rail
// POST /api/v1/settlements/quote
func (h *SettlementHandler) Quote(c *gin.Context) {
	var input quoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	quote, err := h.settlements.Quote(c.Request.Context(), input.Amount, input.Rail)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quote": quote})
}

// Settle converts a confirmed transfer into a fiat payout
// POST /api/v1/settlements
func (h *SettlementHandler) Settle(c *gin.Context) {
	var input entities.SettleRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	settlement, err := h.settlements.Settle(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"settlement": settlement})
}

// GetSettlement gets a settlement by ID
// GET /api/v1/settlements/:id
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	id, ok := settlementIDParam(c)
	if !ok {
		return
	}

	settlement, err := h.settlements.GetSettlement(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settlement": settlement})
}

// ListSettlements lists settlements, newest first
// GET /api/v1/settlements?status=&rail=&page=&limit=
func (h *SettlementHandler) ListSettlements(c *gin.Context) {
	pagination := utils.ParsePagination(c.Query("page"), c.Query("limit"))

	filter := entities.SettlementFilter{
		Status: entities.SettlementStatus(c.Query("status")),
		Rail:   entities.SettlementRail(c.Query("rail")),
	}

	items, total, err := h.settlements.ListSettlements(c.Request.Context(), filter, pagination)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, http.StatusOK, "settlements", items, total, pagination)
}

type confirmDepositRequest struct {
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	TimeoutSeconds  int             `json:"timeoutSeconds"`
}

// ConfirmDeposit waits for the settlement's USDC deposit, records it and
// creates the payout
// POST /api/v1/settlements/:id/confirm-deposit
func (h *SettlementHandler) ConfirmDeposit(c *gin.Context) {
	id, ok := settlementIDParam(c)
	if !ok {
		return
	}
	var input confirmDepositRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if input.PreviousBalance.IsNegative() {
		response.Error(c, domainerrors.BadRequest("previousBalance must not be negative"))
		return
	}
	timeout := time.Duration(input.TimeoutSeconds) * time.Second
	if timeout > maxConfirmTimeout {
		timeout = maxConfirmTimeout
	}

	settlement, detection, err := h.settlements.ConfirmDeposit(c.Request.Context(), id, input.PreviousBalance, timeout)
	if err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeDepositNotDetected) {
			appErr := domainerrors.AsAppError(err)
			c.JSON(appErr.Status, gin.H{
				"code":      appErr.Code,
				"message":   appErr.Message,
				"retryable": appErr.Retryable,
				"deposit":   detection,
			})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settlement": settlement, "deposit": detection})
}

// HandlePayoutWebhook applies a payout provider status notification
// POST /api/v1/webhooks/payouts
func (h *SettlementHandler) HandlePayoutWebhook(c *gin.Context) {
	var input usecases.PayoutWebhook
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	settlement, err := h.settlements.HandlePayoutWebhook(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true, "settlement": settlement})
}

func settlementIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid settlement ID"))
		return uuid.Nil, false
	}
	return id, true
}
