package response

import (
	"github.com/gin-gonic/gin"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/pkg/utils"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error renders err as {code, message, retryable}. Errors without a code
// become a retryable INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	_ = c.Error(err)
	c.JSON(appErr.Status, gin.H{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"retryable": appErr.Retryable,
	})
}

// Abort renders err and stops the handler chain
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// Paginated sends one page of items with pagination metadata
func Paginated(c *gin.Context, status int, key string, items interface{}, total int64, p utils.PaginationParams) {
	c.JSON(status, gin.H{
		key:          items,
		"pagination": p.Meta(total),
	})
}
