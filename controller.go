package helmsman

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/internal/hooks"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/internal/metrics"
	"github.com/arloliu/helmsman/internal/monitor"
	"github.com/arloliu/helmsman/pipeline"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
	"github.com/google/uuid"
)

// Controller reconciles one cluster.
//
// It runs a reconciliation pass on start, on every change observed in the
// store (debounced) and every PollInterval. Passes never overlap; triggers
// arriving while a pass runs collapse into one follow-up pass.
//
// Each controller session is identified by a SessionID. Expiring the session
// cancels any pass running under it and forces the next pass to rewrite
// every assignment.
type Controller struct {
	cfg      Config
	store    store.Store
	accessor *accessor.DataAccessor
	pipeline *pipeline.Pipeline
	monitor  *monitor.ChangeMonitor

	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	state          atomic.Int32
	stateChangedAt atomic.Int64
	lastResult     atomic.Pointer[pipeline.Result]
	passes         atomic.Uint64

	// Session
	sessionMu     sync.RWMutex
	session       SessionID
	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	passMu  sync.Mutex
	trigger chan struct{}

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewController creates a controller for cfg.ClusterName over st.
//
// The configuration is completed with SetDefaults and validated. The store is
// owned by the caller; Stop does not close it.
//
// Parameters:
//   - cfg: Configuration (modified in place by SetDefaults)
//   - st: Coordination store holding the cluster
//   - opts: Optional configuration (hooks, metrics, logger, rebalancers)
//
// Returns:
//   - *Controller: Initialized controller instance
//   - error: ErrInvalidConfig or ErrStoreRequired
//
// Example:
//
//	cfg := helmsman.Config{ClusterName: "mycluster"}
//	ctrl, err := helmsman.NewController(&cfg, memory.New())
//	if err != nil {
//	    return err
//	}
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Stop(context.Background())
func NewController(cfg *Config, st store.Store, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if st == nil {
		return nil, ErrStoreRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	options := &controllerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := hooks.Fill(options.hooks)

	da := accessor.New(st,
		accessor.WithLogger(loggerInstance),
		accessor.WithMetrics(metricsCollector),
		accessor.WithOperationTimeout(cfg.OperationTimeout),
	)

	c := &Controller{
		cfg:      *cfg,
		store:    st,
		accessor: da,
		pipeline: pipeline.New(da, ClusterID(cfg.ClusterName),
			pipeline.WithLogger(loggerInstance),
			pipeline.WithMetrics(metricsCollector),
			pipeline.WithHooks(&hooksInstance),
			pipeline.WithRebalancers(options.rebalancers),
			pipeline.WithMaxParallel(cfg.MaxParallelResources),
		),
		hooks:   &hooksInstance,
		metrics: metricsCollector,
		logger:  loggerInstance,
		trigger: make(chan struct{}, 1),
	}

	c.state.Store(int32(ControllerInit))
	c.stateChangedAt.Store(time.Now().UnixNano())

	return c, nil
}

// Start opens a session, runs the initial pass and begins reacting to changes.
//
// A failing initial pass is logged and retried by the next trigger; only
// cancellation of ctx fails Start.
//
// Parameters:
//   - ctx: Context bounding the initial pass
//
// Returns:
//   - error: ErrAlreadyStarted, or ctx.Err() if canceled during the initial pass
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	session := c.openSession()
	c.logger.Info("controller starting",
		"cluster", c.cfg.ClusterName,
		"controller", c.cfg.ControllerName,
		"session", session,
	)

	keys := accessor.NewKeyBuilder(ClusterID(c.cfg.ClusterName))
	c.monitor = monitor.New(
		c.store,
		store.Join(c.cfg.ClusterName),
		c.cfg.PollInterval,
		c.cfg.WatchDebounce,
		func(context.Context) error {
			c.Trigger()
			return nil
		},
		c.logger,
	)
	// Properties written by passes do not trigger passes.
	for _, key := range []accessor.PropertyKey{keys.ExternalViews(), keys.ResourceAssignments()} {
		if path, err := key.Path(); err == nil {
			c.monitor.Ignore(path)
		}
	}

	c.transitionState(ControllerRunning)

	if _, err := c.RunPass(ctx); err != nil {
		if ctx.Err() != nil {
			if stopErr := c.Stop(context.Background()); stopErr != nil {
				c.logger.Warn("failed to stop controller after canceled start", "error", stopErr)
			}

			return ctx.Err()
		}
		c.logger.Warn("initial reconciliation pass failed", "error", err)
	}

	if err := c.monitor.Start(c.ctx); err != nil {
		return fmt.Errorf("failed to start change monitor: %w", err)
	}

	c.wg.Add(1)
	go c.passLoop()

	return nil
}

// Stop shuts the controller down and waits for an in-flight pass.
//
// Waiting is bounded by both ctx and Config.ShutdownTimeout.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns:
//   - error: ErrNotStarted if never started or already stopped, or the
//     timeout error when the pass did not finish in time
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx == nil || c.State() == ControllerStopped {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.transitionState(ControllerStopped)
	c.cancel()
	c.mu.Unlock()

	if c.monitor != nil {
		if err := c.monitor.Stop(); err != nil && !errors.Is(err, types.ErrMonitorNotStarted) {
			c.logger.Warn("failed to stop change monitor", "error", err)
		}
	}

	c.sessionMu.Lock()
	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.sessionMu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		c.passMu.Lock()
		c.passMu.Unlock() //nolint:staticcheck // waits for an in-flight RunPass
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("controller stopped gracefully", "cluster", c.cfg.ClusterName)
		return nil
	case <-shutdownCtx.Done():
		c.logger.Error("shutdown timeout exceeded, a pass may still be running")
		return shutdownCtx.Err()
	}
}

// Trigger requests a reconciliation pass without waiting for it.
//
// Requests made while a pass is pending collapse into one.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// RunPass runs one reconciliation pass and waits for it.
//
// The pass runs under the current session and is bounded by PassTimeout and
// by ctx. A pass interrupted by ExpireSession fails with ErrSessionExpired.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *pipeline.Result: Pass summary (may be partial on error)
//   - error: ErrNotStarted, ErrSessionExpired, or the pass error
func (c *Controller) RunPass(ctx context.Context) (*pipeline.Result, error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if s := c.State(); s == ControllerInit || s == ControllerStopped {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionCtx, session := c.currentSession()
	passCtx, cancel := context.WithTimeout(sessionCtx, c.cfg.PassTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	c.transitionState(ControllerReconciling)
	res, err := c.pipeline.Run(passCtx)
	c.passes.Add(1)
	if res != nil {
		c.lastResult.Store(res)
	}

	if res != nil && res.Paused {
		c.transitionState(ControllerPaused)
	} else {
		c.transitionState(ControllerRunning)
	}

	if err != nil {
		if sessionCtx.Err() != nil && ctx.Err() == nil && c.lifecycleCtx().Err() == nil {
			return res, fmt.Errorf("%w: session %s: %w", ErrSessionExpired, session, err)
		}

		return res, err
	}

	c.logger.Debug("reconciliation pass completed",
		"session", session,
		"computed", len(res.Assignments),
		"skipped", len(res.Skipped),
		"written", res.Written,
		"unchanged", res.Unchanged,
		"duration", res.Duration,
	)

	return res, nil
}

// ExpireSession replaces the current session with a new one.
//
// A pass running under the old session is canceled, remembered writes are
// forgotten, and a pass under the new session is triggered.
//
// Returns:
//   - SessionID: The new session
//   - error: ErrNotStarted if the controller is not running
func (c *Controller) ExpireSession() (SessionID, error) {
	c.mu.Lock()
	if c.ctx == nil || c.State() == ControllerStopped {
		c.mu.Unlock()
		return "", ErrNotStarted
	}
	c.mu.Unlock()

	expired := c.SessionID()
	current := c.openSession()
	c.pipeline.ResetFingerprints()
	c.metrics.RecordSessionChange()

	c.logger.Warn("controller session expired", "expired", expired, "current", current)
	if err := c.hooks.OnSessionExpired(c.lifecycleCtx(), expired, current); err != nil {
		c.logger.Error("session expired hook error", "error", err)
	}

	c.Trigger()

	return current, nil
}

// SessionID returns the current session, empty before Start.
func (c *Controller) SessionID() SessionID {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()

	return c.session
}

// State returns the current controller state.
//
// Returns:
//   - ControllerState: Current state
func (c *Controller) State() ControllerState {
	return ControllerState(c.state.Load())
}

// LastResult returns the summary of the most recent pass, nil before the first.
func (c *Controller) LastResult() *pipeline.Result {
	return c.lastResult.Load()
}

// Passes returns the number of passes run so far.
func (c *Controller) Passes() uint64 {
	return c.passes.Load()
}

// Accessor returns the data accessor the controller reads and writes through.
func (c *Controller) Accessor() *accessor.DataAccessor {
	return c.accessor
}

// WaitState waits for the controller to reach the expected state within the timeout period.
//
// The returned channel receives exactly one value: nil once the state is
// reached, or context.DeadlineExceeded when the timeout expires first.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result
//
// Example:
//
//	if err := <-ctrl.WaitState(helmsman.ControllerPaused, 5*time.Second); err != nil {
//	    return fmt.Errorf("cluster did not pause: %w", err)
//	}
func (c *Controller) WaitState(expectedState ControllerState, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if c.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if c.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

func (c *Controller) passLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.trigger:
			if _, err := c.RunPass(c.ctx); err != nil && c.ctx.Err() == nil {
				c.logger.Warn("reconciliation pass failed", "error", err)
			}
		}
	}
}

// openSession cancels the current session, if any, and opens a new one.
func (c *Controller) openSession() SessionID {
	parent := c.lifecycleCtx()

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.sessionCancel != nil {
		c.sessionCancel()
	}
	c.session = SessionID(uuid.NewString())
	c.sessionCtx, c.sessionCancel = context.WithCancel(parent)

	return c.session
}

func (c *Controller) currentSession() (context.Context, SessionID) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()

	return c.sessionCtx, c.session
}

func (c *Controller) lifecycleCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return context.Background()
	}

	return c.ctx
}

// transitionState moves to a new state and triggers hooks. Stopped is
// terminal and a transition to the current state is a no-op.
func (c *Controller) transitionState(to ControllerState) {
	var from ControllerState
	for {
		from = c.State()
		if from == to || from == ControllerStopped {
			return
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			break
		}
	}

	now := time.Now().UnixNano()
	since := time.Duration(now - c.stateChangedAt.Swap(now))

	c.logger.Debug("state transition",
		"from", from.String(),
		"to", to.String(),
		"cluster", c.cfg.ClusterName,
	)
	c.metrics.RecordStateTransition(from, to, since.Seconds())

	if err := c.hooks.OnStateChanged(context.Background(), from, to); err != nil {
		c.logger.Error("state change hook error", "from", from, "to", to, "error", err)
	}
}
