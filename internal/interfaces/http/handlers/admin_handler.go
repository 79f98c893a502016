package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/middleware"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/internal/rails"
	"payos.backend/pkg/logger"
)

type RegistryRefresher interface {
	Refresh(ctx context.Context) error
	List() []rails.Descriptor
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	registry RegistryRefresher
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(registry RegistryRefresher) *AdminHandler {
	return &AdminHandler{registry: registry}
}

// RefreshHandlers rebuilds the handler registry from configuration
// POST /api/v1/admin/handlers/refresh
func (h *AdminHandler) RefreshHandlers(c *gin.Context) {
	operator, _ := middleware.GetOperator(c)
	if err := h.registry.Refresh(c.Request.Context()); err != nil {
		logger.Error(c.Request.Context(), "Registry refresh failed",
			zap.String("operator", operator),
			zap.Error(err),
		)
		response.Error(c, domainerrors.InternalError(err))
		return
	}

	handlers := h.registry.List()
	logger.Info(c.Request.Context(), "Registry refreshed",
		zap.String("operator", operator),
		zap.Int("handlers", len(handlers)),
	)
	response.Success(c, http.StatusOK, gin.H{"handlers": handlers})
}
