package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Registry holds every payos collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HandlerOperations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "payos_handler_operations_total",
		Help: "Handler contract calls by handler, operation and outcome.",
	}, []string{"handler", "operation", "outcome"})

	SettlementTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "payos_settlement_transitions_total",
		Help: "Applied bridge settlement status transitions.",
	}, []string{"from", "to"})

	SettlementWebhookUnknownStatus = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "payos_settlement_webhook_unknown_status_total",
		Help: "Payout webhooks carrying a status with no settlement mapping.",
	}, []string{"status"})

	RegistryRefreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "payos_registry_refresh_total",
		Help: "Handler registry refreshes by outcome.",
	}, []string{"outcome"})

	RegistryHandlers = factory.NewGauge(prometheus.GaugeOpts{
		Name: "payos_registry_handlers",
		Help: "Handlers bound in the live registry snapshot.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveHandlerOperation counts one handler contract call.
func ObserveHandlerOperation(handlerID, operation string, err error) {
	HandlerOperations.WithLabelValues(handlerID, operation, Outcome(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
