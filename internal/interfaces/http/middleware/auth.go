package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/pkg/jwt"
	"payos.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// OperatorKey is the context key for the token subject
	OperatorKey = "operator"
	// TenantKey is the context key for the authenticated tenant
	TenantKey = "tenant_id"
)

// bearerClaims validates the bearer token and aborts the request when it is
// missing or invalid.
func bearerClaims(c *gin.Context, jwtService *jwt.JWTService) (*jwt.Claims, bool) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		response.Abort(c, domainerrors.Unauthorized("Authorization header is required"))
		return nil, false
	}
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		response.Abort(c, domainerrors.Unauthorized("Invalid authorization format. Use: Bearer <token>"))
		return nil, false
	}

	claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
	if err != nil {
		logger.Warn(c.Request.Context(), "Bearer token rejected",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		if errors.Is(err, jwt.ErrExpiredToken) {
			response.Abort(c, domainerrors.Unauthorized("Token has expired"))
			return nil, false
		}
		response.Abort(c, domainerrors.Unauthorized("Invalid token"))
		return nil, false
	}
	return claims, true
}

// AdminAuthMiddleware admits only bearer tokens carrying the admin role
func AdminAuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwtService)
		if !ok {
			return
		}
		if claims.Role != jwt.RoleAdmin {
			response.Abort(c, domainerrors.Forbidden("Insufficient permissions"))
			return
		}

		c.Set(OperatorKey, claims.Subject)
		c.Next()
	}
}

// TenantAuthMiddleware admits tenant tokens and binds the token subject as
// the calling tenant for the rest of the request.
func TenantAuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwtService)
		if !ok {
			return
		}
		if claims.Role != jwt.RoleTenant || strings.TrimSpace(claims.Subject) == "" {
			response.Abort(c, domainerrors.Forbidden("Tenant token required"))
			return
		}

		c.Set(TenantKey, claims.Subject)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.TenantIDKey, claims.Subject))
		c.Next()
	}
}

// GetOperator returns the authenticated operator subject
func GetOperator(c *gin.Context) (string, bool) {
	return stringValue(c, OperatorKey)
}

// GetTenant returns the authenticated tenant
func GetTenant(c *gin.Context) (string, bool) {
	return stringValue(c, TenantKey)
}

func stringValue(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
