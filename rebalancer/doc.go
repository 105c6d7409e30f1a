// Package rebalancer computes target assignments for resources.
//
// Every rebalance mode satisfies the same Rebalancer contract and is reached
// through one dispatch Table, keyed by the ideal state's REBALANCE_MODE:
//
//   - CUSTOMIZED: Custom, built in. Verifies the caller's preference map
//     against liveness, disablement and ERROR replicas.
//   - SEMI_AUTO, FULL_AUTO: no built-in placement; register one with
//     WithModeRebalancer.
//   - USER_DEFINED: selected by REBALANCER_CLASS_NAME among rebalancers
//     registered with WithUserDefined.
//
// Rebalancers are pure functions of the pass snapshot and hold no locks.
package rebalancer
