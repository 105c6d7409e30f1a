package helmsman

import "github.com/arloliu/helmsman/rebalancer"

// Option configures a Controller with optional dependencies.
type Option func(*controllerOptions)

// controllerOptions holds optional Controller configuration.
type controllerOptions struct {
	hooks       *Hooks
	metrics     MetricsCollector
	logger      Logger
	rebalancers *rebalancer.Table
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewController
//
// Example:
//
//	hooks := &helmsman.Hooks{
//	    OnPassCompleted: func(ctx context.Context, computed, skipped int) error {
//	        return nil
//	    },
//	}
//	ctrl, err := helmsman.NewController(&cfg, st, helmsman.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *controllerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewController
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "helmsman")
//	ctrl, err := helmsman.NewController(&cfg, st, helmsman.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *controllerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewController
func WithLogger(logger Logger) Option {
	return func(o *controllerOptions) {
		o.logger = logger
	}
}

// WithRebalancers replaces the rebalancer dispatch table.
//
// The default table serves CUSTOMIZED resources only. Register rebalancers
// for the other modes, or user-defined rebalancers by name, on a table
// built with rebalancer.NewTable.
//
// Parameters:
//   - table: Dispatch table used by every pass
//
// Returns:
//   - Option: Functional option for NewController
//
// Example:
//
//	table := rebalancer.NewTable(
//	    rebalancer.WithUserDefined("sticky", myRebalancer),
//	)
//	ctrl, err := helmsman.NewController(&cfg, st, helmsman.WithRebalancers(table))
func WithRebalancers(table *rebalancer.Table) Option {
	return func(o *controllerOptions) {
		o.rebalancers = table
	}
}
