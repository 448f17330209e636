package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics exposes Prometheus-compatible counters and histograms for
// pipeline execution, namespaced "flowfile".
//
// Metrics:
//   - nodes_executed_total (counter, labels: node_type, status)
//   - node_duration_ms (histogram, labels: node_type)
//   - pass_duration_ms (histogram): wall time of one completed execution
//     pass (ExecuteFlow or ExecuteNode)
//   - schema_cache_total (counter, labels: outcome=hit|miss)
//   - storage_routing_total (counter, labels: policy=inline|persistent)
type EngineMetrics struct {
	nodesExecuted  *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	passDuration   prometheus.Histogram
	schemaCache    *prometheus.CounterVec
	storageRouting *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewEngineMetrics registers all engine metrics with registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewEngineMetrics(registry prometheus.Registerer) *EngineMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &EngineMetrics{
		enabled: true,
		nodesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowfile",
			Name:      "nodes_executed_total",
			Help:      "Nodes executed, by node type and outcome",
		}, []string{"node_type", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowfile",
			Name:      "node_duration_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_type"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowfile",
			Name:      "pass_duration_ms",
			Help:      "Wall-clock duration of one execution pass in milliseconds",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}),
		schemaCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowfile",
			Name:      "schema_cache_total",
			Help:      "Schema inference cache hits and misses",
		}, []string{"outcome"}),
		storageRouting: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowfile",
			Name:      "storage_routing_total",
			Help:      "Large-content routing decisions, by policy",
		}, []string{"policy"}),
	}
}

func (m *EngineMetrics) RecordNodeExecuted(nodeType string, duration time.Duration, status string) {
	if !m.isEnabled() {
		return
	}
	m.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(float64(duration.Milliseconds()))
}

func (m *EngineMetrics) RecordPassDuration(d time.Duration) {
	if !m.isEnabled() {
		return
	}
	m.passDuration.Observe(float64(d.Milliseconds()))
}

func (m *EngineMetrics) RecordSchemaCache(hit bool) {
	if !m.isEnabled() {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.schemaCache.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) RecordStorageRouting(persistent bool) {
	if !m.isEnabled() {
		return
	}
	policy := "inline"
	if persistent {
		policy = "persistent"
	}
	m.storageRouting.WithLabelValues(policy).Inc()
}

func (m *EngineMetrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops recording new observations; useful in tests that share a
// default registry across cases.
func (m *EngineMetrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

func (m *EngineMetrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
