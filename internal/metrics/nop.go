// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/helmsman/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	ctrl, err := helmsman.NewController(&cfg, st, helmsman.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ControllerMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.ControllerState, _ /* duration */ float64) {
	// No-op
}

// RecordSessionChange discards the session change metric.
func (n *NopMetrics) RecordSessionChange() {
	// No-op
}

// PipelineMetrics implementation

// RecordPassDuration discards the pass duration metric.
func (n *NopMetrics) RecordPassDuration(_ /* duration */ float64, _ /* result */ string) {
	// No-op
}

// RecordResourceSkipped discards the skipped resource metric.
func (n *NopMetrics) RecordResourceSkipped(_ /* reason */ string) {
	// No-op
}

// RecordAssignmentWrite discards the assignment write metric.
func (n *NopMetrics) RecordAssignmentWrite(_ /* kind */, _ /* result */ string) {
	// No-op
}

// RecordResourceCount discards the resource count metric.
func (n *NopMetrics) RecordResourceCount(_ /* count */ int) {
	// No-op
}

// RecordLiveParticipants discards the live participant metric.
func (n *NopMetrics) RecordLiveParticipants(_ /* count */ int) {
	// No-op
}

// StoreMetrics implementation

// RecordStoreOperation discards the store operation metric.
func (n *NopMetrics) RecordStoreOperation(_ /* operation */ string, _ /* duration */ float64, _ /* success */ bool) {
	// No-op
}
