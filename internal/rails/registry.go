package rails

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
	"payos.backend/internal/domain/providers"
	"payos.backend/internal/domain/repositories"
	"payos.backend/pkg/logger"
	"payos.backend/pkg/metrics"
)

// HandlerFactory builds the live handler for a non-custom configuration row.
type HandlerFactory func(row *entities.HandlerConfig) (Handler, error)

// NewHandlerFactory returns the factory used for demo, webhook and
// connected-account rows.
func NewHandlerFactory(store Store, clients providers.ClientFactory) HandlerFactory {
	return func(row *entities.HandlerConfig) (Handler, error) {
		switch row.IntegrationMode {
		case entities.IntegrationModeDemo, entities.IntegrationModeWebhook:
			return NewConfiguredHandler(row, store)
		case entities.IntegrationModeConnectedAccount:
			return NewConnectedAccountHandler(row, store, clients), nil
		}
		return nil, domainerrors.InvalidHandlerConfig(row.ID, "unsupported integration mode '"+string(row.IntegrationMode)+"'")
	}
}

type registration struct {
	handler Handler
	plugin  bool
}

// snapshot is one complete, immutable id to handler mapping.
type snapshot struct {
	byID  map[string]Handler
	order []string
	// inert holds custom rows that have no plugin yet.
	inert map[string]*entities.HandlerConfig
	// rows holds the row each id was bound from, if any.
	rows map[string]*entities.HandlerConfig
}

func (s *snapshot) bind(id string, h Handler) {
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = h
	delete(s.inert, id)
}

func (s *snapshot) unbind(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		byID:  make(map[string]Handler, len(s.byID)),
		order: append([]string(nil), s.order...),
		inert: make(map[string]*entities.HandlerConfig, len(s.inert)),
		rows:  make(map[string]*entities.HandlerConfig, len(s.rows)),
	}
	for k, v := range s.byID {
		next.byID[k] = v
	}
	for k, v := range s.inert {
		next.inert[k] = v
	}
	for k, v := range s.rows {
		next.rows[k] = v
	}
	return next
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byID:  map[string]Handler{},
		inert: map[string]*entities.HandlerConfig{},
		rows:  map[string]*entities.HandlerConfig{},
	}
}

// Registry resolves handler ids to live handlers. Readers always see a
// complete mapping: Load and Refresh build a new snapshot and swap it in.
type Registry struct {
	configs   repositories.HandlerConfigRepository
	factory   HandlerFactory
	defaultID string

	mu      sync.Mutex
	static  []string
	entries map[string]registration
	current atomic.Pointer[snapshot]
}

func NewRegistry(configs repositories.HandlerConfigRepository, factory HandlerFactory, defaultID string) *Registry {
	r := &Registry{
		configs:   configs,
		factory:   factory,
		defaultID: defaultID,
		entries:   map[string]registration{},
	}
	r.current.Store(emptySnapshot())
	return r
}

// Register adds a compiled-in code handler. Code handlers are dropped by
// Refresh unless they were also registered as plugins.
func (r *Registry) Register(h Handler) {
	r.register(h, false)
}

// RegisterPlugin adds a custom plugin. Plugins survive every refresh and
// supply behavior for custom rows with the same id.
func (r *Registry) RegisterPlugin(h Handler) {
	r.register(h, true)
}

func (r *Registry) register(h Handler, plugin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.ID()
	if _, ok := r.entries[id]; !ok {
		r.static = append(r.static, id)
	}
	r.entries[id] = registration{handler: h, plugin: plugin}

	next := r.current.Load().clone()
	row, fromRow := next.rows[id]
	inertRow, inert := next.inert[id]
	switch {
	case inert && plugin:
		row, fromRow = inertRow, true
	case inert:
		return
	case fromRow && (row.IntegrationMode != entities.IntegrationModeCustom || !plugin):
		// row-driven bindings keep precedence over late registrations
		return
	}

	if fromRow {
		bound, err := wrapPlugin(row, h)
		if err != nil {
			logger.Error(context.Background(), "Failed to configure plugin", zap.String("handler_id", id), zap.Error(err))
			return
		}
		next.bind(id, bound)
		next.rows[id] = row
	} else {
		next.bind(id, h)
	}
	r.swap(next)
}

// Load binds every registered handler, then every active row.
func (r *Registry) Load(ctx context.Context) error {
	return r.rebuild(ctx, false)
}

// Refresh rebinds from configuration. Only plugins and row-driven handlers
// survive; a failed refresh keeps the previous mapping.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.rebuild(ctx, true)
}

func (r *Registry) rebuild(ctx context.Context, pluginsOnly bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.configs.ListActive(ctx)
	if err != nil {
		metrics.RegistryRefreshes.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Error(ctx, "Failed to load handler configurations", zap.Error(err))
		return domainerrors.InternalError(err)
	}

	next := emptySnapshot()
	for _, id := range r.static {
		e := r.entries[id]
		if pluginsOnly && !e.plugin {
			continue
		}
		next.bind(id, e.handler)
	}

	for _, row := range rows {
		if row.Status != entities.HandlerConfigStatusActive {
			continue
		}
		if row.IntegrationMode == entities.IntegrationModeCustom {
			e, ok := r.entries[row.ID]
			if !ok || !e.plugin {
				next.unbind(row.ID)
				next.inert[row.ID] = row
				logger.Warn(ctx, "Custom handler row has no registered plugin", zap.String("handler_id", row.ID))
				continue
			}
			bound, err := wrapPlugin(row, e.handler)
			if err != nil {
				logger.Error(ctx, "Failed to configure plugin", zap.String("handler_id", row.ID), zap.Error(err))
				continue
			}
			next.bind(row.ID, bound)
			next.rows[row.ID] = row
			continue
		}

		h, err := r.factory(row)
		if err != nil {
			logger.Error(ctx, "Skipping handler configuration",
				zap.String("handler_id", row.ID),
				zap.String("integration_mode", string(row.IntegrationMode)),
				zap.Error(err),
			)
			continue
		}
		next.bind(row.ID, h)
		next.rows[row.ID] = row
	}

	r.swap(next)
	metrics.RegistryRefreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logger.Info(ctx, "Payment handler registry loaded",
		zap.Int("handlers", len(next.order)),
		zap.Int("inert", len(next.inert)),
		zap.Bool("refresh", pluginsOnly),
	)
	return nil
}

func (r *Registry) swap(next *snapshot) {
	r.current.Store(next)
	metrics.RegistryHandlers.Set(float64(len(next.order)))
}

// Get returns the handler bound to id.
func (r *Registry) Get(id string) (Handler, error) {
	h, ok := r.current.Load().byID[id]
	if !ok {
		return nil, domainerrors.HandlerNotFound(id)
	}
	return h, nil
}

// List describes every bound handler in registration order.
func (r *Registry) List() []Descriptor {
	snap := r.current.Load()
	out := make([]Descriptor, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, Describe(snap.byID[id]))
	}
	return out
}

// Select picks the handler for a (type, currency) pair, preferring the
// default rail and otherwise the earliest registered match.
func (r *Registry) Select(instrumentType, currency string) (Handler, error) {
	snap := r.current.Load()
	var first Handler
	for _, id := range snap.order {
		h := snap.byID[id]
		if !containsFold(h.SupportedTypes(), instrumentType) || !containsFold(h.SupportedCurrencies(), currency) {
			continue
		}
		if id == r.defaultID {
			return h, nil
		}
		if first == nil {
			first = h
		}
	}
	if first == nil {
		return nil, domainerrors.HandlerNotFound(strings.ToLower(instrumentType) + "/" + strings.ToUpper(currency))
	}
	return first, nil
}

func (r *Registry) AcquireInstrument(ctx context.Context, handlerID string, in AcquireInstrumentInput) (*entities.PaymentInstrument, error) {
	h, err := r.Get(handlerID)
	if err != nil {
		return nil, err
	}
	inst, err := h.AcquireInstrument(ctx, in)
	metrics.ObserveHandlerOperation(handlerID, OpAcquireInstrument, err)
	return inst, normalize(err)
}

func (r *Registry) ProcessPayment(ctx context.Context, handlerID string, in ProcessPaymentInput) (*entities.Payment, error) {
	h, err := r.Get(handlerID)
	if err != nil {
		return nil, err
	}
	p, err := h.ProcessPayment(ctx, in)
	metrics.ObserveHandlerOperation(handlerID, OpProcessPayment, err)
	return p, normalize(err)
}

func (r *Registry) RefundPayment(ctx context.Context, handlerID string, in RefundPaymentInput) (*entities.Refund, error) {
	h, err := r.Get(handlerID)
	if err != nil {
		return nil, err
	}
	refund, err := h.RefundPayment(ctx, in)
	metrics.ObserveHandlerOperation(handlerID, OpRefundPayment, err)
	return refund, normalize(err)
}

func (r *Registry) GetPaymentStatus(ctx context.Context, handlerID string, paymentID uuid.UUID) (*entities.PaymentStatusView, error) {
	h, err := r.Get(handlerID)
	if err != nil {
		return nil, err
	}
	view, err := h.GetPaymentStatus(ctx, paymentID)
	metrics.ObserveHandlerOperation(handlerID, OpGetPaymentStatus, err)
	return view, normalize(err)
}

// normalize ensures callers only ever see *AppError values.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return domainerrors.InternalError(err)
}

// pluginHandler binds a custom plugin to the configuration row that
// activated it: the row names it, the plugin supplies behavior.
type pluginHandler struct {
	Handler
	row *entities.HandlerConfig
}

func wrapPlugin(row *entities.HandlerConfig, plugin Handler) (Handler, error) {
	if c, ok := plugin.(Configurable); ok {
		if err := c.Configure(row); err != nil {
			return nil, err
		}
	}
	return &pluginHandler{Handler: plugin, row: row}, nil
}

func (p *pluginHandler) Name() string { return displayName(p.row) }

func (p *pluginHandler) Kind() Kind { return KindPlugin }

// Unwrap returns the plugin behind the binding.
func (p *pluginHandler) Unwrap() Handler { return p.Handler }
