package ports

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusRecorder for production,
// NoopRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordRequest records an authentication request processed by a role
	// ("connector" or "proxy-service").
	RecordRequest(role string, success bool)

	// RecordResponse records an authentication response processed by a role.
	RecordResponse(role string, success bool)

	// RecordFault records a translated fault by kind.
	RecordFault(kind string)

	// RecordMetadataFetch records a metadata retrieval attempt.
	RecordMetadataFetch(source string, success bool)

	// RecordCorrelation records a correlation store consumption outcome.
	RecordCorrelation(hit bool)
}
