// Package pipeline runs reconciliation passes.
//
// One pass:
//
//  1. Loader reads the cluster through the accessor into a Snapshot: pause
//     signal, state models, constraints, participants, ideal states and the
//     current and pending state of every live session.
//  2. Every resource is handed to the rebalancer of its mode on a bounded
//     worker pool. A resource with a missing state model, an unsupported mode
//     or a failing rebalancer is skipped and the pass goes on.
//  3. Assignments and external views are written in one batch. Content that
//     did not change since the last successful write is not written again;
//     properties of deleted resources are removed.
//
// A paused cluster produces a Result with Paused set and writes nothing.
package pipeline
