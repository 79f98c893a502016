package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/rails"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type registryStub struct {
	handlers  map[string]rails.Handler
	selectFn  func(instrumentType, currency string) (rails.Handler, error)
	acquireFn func(ctx context.Context, handlerID string, in rails.AcquireInstrumentInput) (*entities.PaymentInstrument, error)
	processFn func(ctx context.Context, handlerID string, in rails.ProcessPaymentInput) (*entities.Payment, error)
	refundFn  func(ctx context.Context, handlerID string, in rails.RefundPaymentInput) (*entities.Refund, error)
	statusFn  func(ctx context.Context, handlerID string, paymentID uuid.UUID) (*entities.PaymentStatusView, error)
	refreshFn func(ctx context.Context) error
}

func (s *registryStub) List() []rails.Descriptor {
	out := make([]rails.Descriptor, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, rails.Describe(h))
	}
	return out
}

func (s *registryStub) Get(id string) (rails.Handler, error) {
	h, ok := s.handlers[id]
	if !ok {
		return nil, domainerrors.HandlerNotFound(id)
	}
	return h, nil
}

func (s *registryStub) Select(instrumentType, currency string) (rails.Handler, error) {
	return s.selectFn(instrumentType, currency)
}

func (s *registryStub) AcquireInstrument(ctx context.Context, handlerID string, in rails.AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	return s.acquireFn(ctx, handlerID, in)
}

func (s *registryStub) ProcessPayment(ctx context.Context, handlerID string, in rails.ProcessPaymentInput) (*entities.Payment, error) {
	return s.processFn(ctx, handlerID, in)
}

func (s *registryStub) RefundPayment(ctx context.Context, handlerID string, in rails.RefundPaymentInput) (*entities.Refund, error) {
	return s.refundFn(ctx, handlerID, in)
}

func (s *registryStub) GetPaymentStatus(ctx context.Context, handlerID string, paymentID uuid.UUID) (*entities.PaymentStatusView, error) {
	return s.statusFn(ctx, handlerID, paymentID)
}

func (s *registryStub) Refresh(ctx context.Context) error {
	return s.refreshFn(ctx)
}

// handlerStub is a minimal rails.Handler.
type handlerStub struct {
	id    string
	types []string
}

func (h *handlerStub) ID() string                    { return h.id }
func (h *handlerStub) Name() string                  { return "com.test." + h.id }
func (h *handlerStub) Kind() rails.Kind              { return rails.KindCode }
func (h *handlerStub) SupportedTypes() []string      { return h.types }
func (h *handlerStub) SupportedCurrencies() []string { return []string{"USD"} }

func (h *handlerStub) AcquireInstrument(context.Context, rails.AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	return nil, nil
}

func (h *handlerStub) ProcessPayment(context.Context, rails.ProcessPaymentInput) (*entities.Payment, error) {
	return nil, nil
}

func (h *handlerStub) RefundPayment(context.Context, rails.RefundPaymentInput) (*entities.Refund, error) {
	return nil, nil
}

func (h *handlerStub) GetPaymentStatus(context.Context, uuid.UUID) (*entities.PaymentStatusView, error) {
	return nil, nil
}

// webhookHandlerStub adds manual capture and payment events.
type webhookHandlerStub struct {
	handlerStub
	mode      entities.IntegrationMode
	applyFn   func(paymentID uuid.UUID, status entities.PaymentStatus, reason string) (*entities.Payment, error)
	captureFn func(paymentID uuid.UUID) (*entities.Payment, error)
}

func (h *webhookHandlerStub) Mode() entities.IntegrationMode { return h.mode }

func (h *webhookHandlerStub) ApplyPaymentEvent(_ context.Context, paymentID uuid.UUID, status entities.PaymentStatus, reason string) (*entities.Payment, error) {
	return h.applyFn(paymentID, status, reason)
}

func (h *webhookHandlerStub) CapturePayment(_ context.Context, paymentID uuid.UUID) (*entities.Payment, error) {
	return h.captureFn(paymentID)
}

func (h *webhookHandlerStub) VoidPayment(_ context.Context, paymentID uuid.UUID) (*entities.Payment, error) {
	return &entities.Payment{ID: paymentID, Status: entities.PaymentStatusCancelled}, nil
}

// wrappedHandler mimics a registry plugin wrapper.
type wrappedHandler struct {
	rails.Handler
}

func (w *wrappedHandler) Unwrap() rails.Handler { return w.Handler }

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
