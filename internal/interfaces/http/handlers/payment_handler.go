package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/middleware"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/internal/rails"
	"payos.backend/pkg/utils"
)

// HandlerRegistry is the subset of *rails.Registry the HTTP layer uses.
type HandlerRegistry interface {
	List() []rails.Descriptor
	Get(id string) (rails.Handler, error)
	Select(instrumentType, currency string) (rails.Handler, error)
	AcquireInstrument(ctx context.Context, handlerID string, in rails.AcquireInstrumentInput) (*entities.PaymentInstrument, error)
	ProcessPayment(ctx context.Context, handlerID string, in rails.ProcessPaymentInput) (*entities.Payment, error)
	RefundPayment(ctx context.Context, handlerID string, in rails.RefundPaymentInput) (*entities.Refund, error)
	GetPaymentStatus(ctx context.Context, handlerID string, paymentID uuid.UUID) (*entities.PaymentStatusView, error)
}

// capturer is implemented by handlers that support manual capture.
type capturer interface {
	CapturePayment(ctx context.Context, paymentID uuid.UUID) (*entities.Payment, error)
	VoidPayment(ctx context.Context, paymentID uuid.UUID) (*entities.Payment, error)
}

// PaymentHandler exposes the handler contract over HTTP
type PaymentHandler struct {
	registry HandlerRegistry
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(registry HandlerRegistry) *PaymentHandler {
	return &PaymentHandler{registry: registry}
}

// ListHandlers lists every bound handler
// GET /api/v1/handlers
func (h *PaymentHandler) ListHandlers(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"handlers": h.registry.List()})
}

// SelectHandler picks the handler for an instrument type and currency
// GET /api/v1/handlers/select?type=&currency=
func (h *PaymentHandler) SelectHandler(c *gin.Context) {
	instrumentType := strings.TrimSpace(c.Query("type"))
	currency := strings.TrimSpace(c.Query("currency"))
	if instrumentType == "" || currency == "" {
		response.Error(c, domainerrors.BadRequest("type and currency are required"))
		return
	}

	handler, err := h.registry.Select(instrumentType, currency)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"handler": rails.Describe(handler)})
}

// AcquireInstrument tokenizes a payment method on a handler
// POST /api/v1/handlers/:handlerId/instruments
func (h *PaymentHandler) AcquireInstrument(c *gin.Context) {
	var input rails.AcquireInstrumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	input.Metadata = withTenant(c, input.Metadata)

	inst, err := h.registry.AcquireInstrument(requestContext(c), c.Param("handlerId"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"instrument": inst})
}

// ProcessPayment charges an instrument. The Idempotency-Key header takes
// precedence over the body field.
// POST /api/v1/handlers/:handlerId/payments
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var input rails.ProcessPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	if key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyHeader)); key != "" {
		input.IdempotencyKey = key
	}
	input.Metadata = withTenant(c, input.Metadata)

	payment, err := h.registry.ProcessPayment(requestContext(c), c.Param("handlerId"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"payment": payment})
}

// GetPaymentStatus reports a payment's current status
// GET /api/v1/handlers/:handlerId/payments/:paymentId
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}

	view, err := h.registry.GetPaymentStatus(requestContext(c), c.Param("handlerId"), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": view})
}

// RefundPayment refunds all or part of a payment
// POST /api/v1/handlers/:handlerId/payments/:paymentId/refunds
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}
	var input rails.RefundPaymentInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}
	input.PaymentID = paymentID

	refund, err := h.registry.RefundPayment(requestContext(c), c.Param("handlerId"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"refund": refund})
}

// CapturePayment completes a manual-capture authorization
// POST /api/v1/handlers/:handlerId/payments/:paymentId/capture
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	h.manualCapture(c, capturer.CapturePayment)
}

// VoidPayment releases a manual-capture authorization
// POST /api/v1/handlers/:handlerId/payments/:paymentId/void
func (h *PaymentHandler) VoidPayment(c *gin.Context) {
	h.manualCapture(c, capturer.VoidPayment)
}

func (h *PaymentHandler) manualCapture(c *gin.Context, op func(capturer, context.Context, uuid.UUID) (*entities.Payment, error)) {
	paymentID, ok := paymentIDParam(c)
	if !ok {
		return
	}
	handlerID := c.Param("handlerId")
	handler, err := h.registry.Get(handlerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	target, ok := unwrapHandler(handler).(capturer)
	if !ok {
		response.Error(c, domainerrors.BadRequest("handler '"+handlerID+"' does not support manual capture"))
		return
	}

	payment, err := op(target, requestContext(c), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": payment})
}

func paymentIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := utils.ParseID(c.Param("paymentId"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid payment ID"))
		return uuid.Nil, false
	}
	return id, true
}

// withTenant replaces any caller-supplied tenant in the handler metadata
// with the authenticated one.
func withTenant(c *gin.Context, metadata map[string]string) map[string]string {
	delete(metadata, rails.MetadataTenantID)
	tenantID, ok := middleware.GetTenant(c)
	if !ok {
		return metadata
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata[rails.MetadataTenantID] = tenantID
	return metadata
}

// requestContext scopes payment lookups to the authenticated tenant.
func requestContext(c *gin.Context) context.Context {
	if tenantID, ok := middleware.GetTenant(c); ok {
		return rails.WithTenant(c.Request.Context(), tenantID)
	}
	return c.Request.Context()
}

func unwrapHandler(h rails.Handler) rails.Handler {
	for {
		w, ok := h.(interface{ Unwrap() rails.Handler })
		if !ok {
			return h
		}
		h = w.Unwrap()
	}
}
