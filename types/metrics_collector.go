package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ControllerMetrics
	PipelineMetrics
	StoreMetrics
}

// ControllerMetrics defines metrics for controller lifecycle operations.
type ControllerMetrics interface {
	// RecordStateTransition records a controller state transition event.
	RecordStateTransition(from, to ControllerState, duration float64)

	// RecordSessionChange records that the controller opened a new session.
	RecordSessionChange()
}

// PipelineMetrics defines metrics for reconciliation passes.
type PipelineMetrics interface {
	// RecordPassDuration records the time taken for one reconciliation pass.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - result: Pass outcome ("success", "failure", "paused", "canceled")
	RecordPassDuration(duration float64, result string)

	// RecordResourceSkipped records a resource left out of a pass.
	//
	// Parameters:
	//   - reason: Skip reason ("missing_state_model", "unsupported_mode", "rebalancer_error")
	RecordResourceSkipped(reason string)

	// RecordAssignmentWrite records the outcome of persisting one resource property.
	//
	// Parameters:
	//   - kind: Property written ("assignment", "external_view")
	//   - result: Write outcome ("written", "unchanged", "failed", "removed")
	RecordAssignmentWrite(kind, result string)

	// RecordResourceCount sets the number of resources computed in the last pass (gauge metric).
	RecordResourceCount(count int)

	// RecordLiveParticipants sets the number of live participants seen in the last pass (gauge metric).
	RecordLiveParticipants(count int)
}

// StoreMetrics defines metrics for coordination store access.
type StoreMetrics interface {
	// RecordStoreOperation records store operation latency and outcome.
	//
	// Parameters:
	//   - operation: Operation type ("create", "set", "update", "get", "remove", "children")
	//   - duration: Time taken in seconds
	//   - success: true if the operation succeeded (absent reads count as success)
	RecordStoreOperation(operation string, duration float64, success bool)
}
