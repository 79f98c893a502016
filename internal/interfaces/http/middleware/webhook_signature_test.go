package middleware

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub, err := json.Marshal(jose.JSONWebKey{Key: &priv.PublicKey, KeyID: "wh-1", Algorithm: string(jose.ES256), Use: "sig"})
	require.NoError(t, err)
	return priv, string(pub)
}

func signDetached(t *testing.T, priv *ecdsa.PrivateKey, body string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: priv}, nil)
	require.NoError(t, err)
	obj, err := signer.Sign([]byte(body))
	require.NoError(t, err)
	sig, err := obj.DetachedCompactSerialize()
	require.NoError(t, err)
	return sig
}

func webhookRouter(t *testing.T, jwk string) *gin.Engine {
	key, err := ParseWebhookKey(jwk)
	require.NoError(t, err)
	r := gin.New()
	r.Use(WebhookSignatureMiddleware(key))
	r.POST("/webhooks/payouts", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

func deliver(r *gin.Engine, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payouts", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(WebhookSignatureHeader, sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookSignatureMiddleware(t *testing.T) {
	priv, jwk := newWebhookKey(t)
	r := webhookRouter(t, jwk)
	body := `{"payoutId":"po_1","status":"complete"}`

	w := deliver(r, body, signDetached(t, priv, body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())

	w = deliver(r, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")

	w = deliver(r, `{"payoutId":"po_1","status":"failed"}`, signDetached(t, priv, body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = deliver(r, body, "not.a.jws")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, _ := newWebhookKey(t)
	w = deliver(r, body, signDetached(t, other, body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignatureMiddleware_DisabledWithoutKey(t *testing.T) {
	r := webhookRouter(t, "")
	w := deliver(r, `{}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireWebhookSignatureMiddleware(t *testing.T) {
	priv, jwk := newWebhookKey(t)
	key, err := ParseWebhookKey(jwk)
	require.NoError(t, err)

	for name, k := range map[string]*jose.JSONWebKey{"configured": key, "unconfigured": nil} {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequireWebhookSignatureMiddleware(k))
			r.POST("/webhooks/payouts", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := deliver(r, `{"paymentId":"p-1","status":"succeeded"}`, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")
		})
	}

	r := gin.New()
	r.Use(RequireWebhookSignatureMiddleware(key))
	r.POST("/webhooks/payouts", func(c *gin.Context) { c.Status(http.StatusOK) })
	body := `{"paymentId":"p-1","status":"succeeded"}`
	assert.Equal(t, http.StatusOK, deliver(r, body, signDetached(t, priv, body)).Code)
}

func TestParseWebhookKey_Invalid(t *testing.T) {
	_, err := ParseWebhookKey("{not json")
	assert.Error(t, err)
}
