package metrics

import (
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// NoopMetricsRecorder is a no-op implementation for when metrics are disabled.
// All methods are safe to call and do nothing.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordRequest is a no-op.
func (n *NoopMetricsRecorder) RecordRequest(role string, success bool) {}

// RecordResponse is a no-op.
func (n *NoopMetricsRecorder) RecordResponse(role string, success bool) {}

// RecordFault is a no-op.
func (n *NoopMetricsRecorder) RecordFault(kind string) {}

// RecordMetadataFetch is a no-op.
func (n *NoopMetricsRecorder) RecordMetadataFetch(source string, success bool) {}

// RecordCorrelation is a no-op.
func (n *NoopMetricsRecorder) RecordCorrelation(hit bool) {}

// Ensure NoopMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
