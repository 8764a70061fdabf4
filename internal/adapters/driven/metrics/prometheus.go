package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	requestsTotal      *prometheus.CounterVec
	responsesTotal     *prometheus.CounterVec
	faultsTotal        *prometheus.CounterVec
	metadataFetchTotal *prometheus.CounterVec
	correlationsTotal  *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics recorder
// with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eidas_node_requests_total",
		Help: "Total authentication requests processed",
	}, []string{"role", "result"})

	responsesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eidas_node_responses_total",
		Help: "Total authentication responses processed",
	}, []string{"role", "result"})

	faultsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eidas_node_faults_total",
		Help: "Total faults translated to protocol responses",
	}, []string{"kind"})

	metadataFetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eidas_node_metadata_fetch_total",
		Help: "Total metadata retrieval attempts",
	}, []string{"source", "result"})

	correlationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eidas_node_correlations_total",
		Help: "Total correlation store consumptions",
	}, []string{"result"})

	reg.MustRegister(
		requestsTotal,
		responsesTotal,
		faultsTotal,
		metadataFetchTotal,
		correlationsTotal,
	)

	return &PrometheusMetricsRecorder{
		requestsTotal:      requestsTotal,
		responsesTotal:     responsesTotal,
		faultsTotal:        faultsTotal,
		metadataFetchTotal: metadataFetchTotal,
		correlationsTotal:  correlationsTotal,
	}
}

// RecordRequest records an authentication request processed by a role.
func (p *PrometheusMetricsRecorder) RecordRequest(role string, success bool) {
	p.requestsTotal.WithLabelValues(role, resultLabel(success)).Inc()
}

// RecordResponse records an authentication response processed by a role.
func (p *PrometheusMetricsRecorder) RecordResponse(role string, success bool) {
	p.responsesTotal.WithLabelValues(role, resultLabel(success)).Inc()
}

// RecordFault records a translated fault by kind.
func (p *PrometheusMetricsRecorder) RecordFault(kind string) {
	p.faultsTotal.WithLabelValues(kind).Inc()
}

// RecordMetadataFetch records a metadata retrieval attempt.
func (p *PrometheusMetricsRecorder) RecordMetadataFetch(source string, success bool) {
	p.metadataFetchTotal.WithLabelValues(source, resultLabel(success)).Inc()
}

// RecordCorrelation records a correlation store consumption outcome.
func (p *PrometheusMetricsRecorder) RecordCorrelation(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.correlationsTotal.WithLabelValues(result).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Ensure PrometheusMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
