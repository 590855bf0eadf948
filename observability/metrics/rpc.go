package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type RPCMetrics struct {
	requests         *prometheus.CounterVec
	errors           *prometheus.CounterVec
	paymentsObserved prometheus.Gauge
	blocksProcessed  *prometheus.CounterVec
}

var (
	rpcOnce     sync.Once
	rpcRegistry *RPCMetrics
)

func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rpc_requests_total",
				Help: "Count of RPC requests by action.",
			}, []string{"action"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rpc_errors_total",
				Help: "Count of RPC error responses by action.",
			}, []string{"action"}),
			paymentsObserved: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rpc_payment_observers",
				Help: "Number of registered payment observers.",
			}),
			blocksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "node_blocks_processed_total",
				Help: "Count of locally processed blocks by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.paymentsObserved,
			rpcRegistry.blocksProcessed,
		)
	})
	return rpcRegistry
}

func (m *RPCMetrics) ObserveRequest(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.requests.WithLabelValues(action).Inc()
}

func (m *RPCMetrics) ObserveError(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.errors.WithLabelValues(action).Inc()
}

func (m *RPCMetrics) SetPaymentObservers(count int) {
	if m == nil {
		return
	}
	m.paymentsObserved.Set(float64(count))
}

func (m *RPCMetrics) ObserveBlockProcessed(blockType string) {
	if m == nil {
		return
	}
	m.blocksProcessed.WithLabelValues(blockType).Inc()
}
