// Package types provides core type definitions and interfaces for the Helmsman library.
//
// This package contains shared types that are used across multiple packages in the
// Helmsman library. By keeping these types in a separate package, we avoid import cycles
// between the root helmsman package, the model and cluster packages, and the internal
// implementations.
//
// Key types:
//   - ClusterID, ResourceID, ParticipantID, PartitionID, StateModelDefID: opaque identifiers
//   - State: One state of a state model; DROPPED and ERROR are reserved
//   - Scope: Granularity of a configuration or constraint
//   - Record: Serialization unit of every cluster property
//   - ControllerState: Controller lifecycle state
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
