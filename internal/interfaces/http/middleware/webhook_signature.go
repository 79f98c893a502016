package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v3"
	"go.uber.org/zap"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/interfaces/http/response"
	"payos.backend/pkg/logger"
)

// WebhookSignatureHeader carries a compact JWS with a detached payload
// (header..signature) over the raw request body.
const WebhookSignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// ParseWebhookKey parses a public JWK. An empty document yields nil, which
// disables verification.
func ParseWebhookKey(jwkJSON string) (*jose.JSONWebKey, error) {
	if jwkJSON == "" {
		return nil, nil
	}
	var key jose.JSONWebKey
	if err := json.Unmarshal([]byte(jwkJSON), &key); err != nil {
		return nil, fmt.Errorf("invalid webhook jwk: %w", err)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("invalid webhook jwk")
	}
	if !key.IsPublic() {
		key = key.Public()
	}
	return &key, nil
}

// WebhookSignatureMiddleware rejects webhook deliveries whose detached JWS
// does not verify against key. A nil key lets every delivery through.
func WebhookSignatureMiddleware(key *jose.JSONWebKey) gin.HandlerFunc {
	return verifyWebhookSignature(key, false)
}

// RequireWebhookSignatureMiddleware is WebhookSignatureMiddleware without
// the nil-key bypass: with no key every delivery is rejected.
func RequireWebhookSignatureMiddleware(key *jose.JSONWebKey) gin.HandlerFunc {
	return verifyWebhookSignature(key, true)
}

func verifyWebhookSignature(key *jose.JSONWebKey, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == nil {
			if required {
				response.Abort(c, domainerrors.InvalidSignature("webhook signature verification is not configured"))
				return
			}
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			response.Abort(c, domainerrors.BadRequest("failed to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sig := c.GetHeader(WebhookSignatureHeader)
		if sig == "" {
			response.Abort(c, domainerrors.InvalidSignature("missing webhook signature"))
			return
		}
		jws, err := jose.ParseDetached(sig, body)
		if err != nil {
			response.Abort(c, domainerrors.InvalidSignature("malformed webhook signature"))
			return
		}
		if _, err := jws.Verify(key); err != nil {
			logger.Warn(c.Request.Context(), "Webhook signature rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			response.Abort(c, domainerrors.InvalidSignature("webhook signature does not verify"))
			return
		}
		c.Next()
	}
}
