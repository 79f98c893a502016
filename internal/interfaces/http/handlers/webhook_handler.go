package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/pkg/logger"
)

type paymentEventApplier interface {
	Mode() entities.IntegrationMode
	ApplyPaymentEvent(ctx context.Context, paymentID uuid.UUID, status entities.PaymentStatus, reason string) (*entities.Payment, error)
}

// WebhookHandler receives payment outcomes from webhook-mode rails
type WebhookHandler struct {
	registry HandlerRegistry
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(registry HandlerRegistry) *WebhookHandler {
	return &WebhookHandler{registry: registry}
}

type paymentEventRequest struct {
	PaymentID uuid.UUID              `json:"paymentId" binding:"required"`
	Status    entities.PaymentStatus `json:"status" binding:"required"`
	Reason    string                 `json:"reason"`
}

// HandlePaymentEvent records a webhook-mode rail's payment outcome
// POST /api/v1/webhooks/handlers/:handlerId
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	var input paymentEventRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	handlerID := c.Param("handlerId")
	handler, err := h.registry.Get(handlerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	applier, ok := unwrapHandler(handler).(paymentEventApplier)
	if !ok || applier.Mode() != entities.IntegrationModeWebhook {
		response.Error(c, domainerrors.BadRequest("handler '"+handlerID+"' does not accept payment events"))
		return
	}

	payment, err := applier.ApplyPaymentEvent(c.Request.Context(), input.PaymentID, input.Status, input.Reason)
	if err != nil {
		logger.Warn(c.Request.Context(), "Payment event rejected",
			zap.String("payment_id", input.PaymentID.String()),
			zap.String("status", string(input.Status)),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true, "payment": payment})
}
