// Package liveness announces a participant to the cluster.
//
// An Announcer owns the participant's LIVEINSTANCES node. The node is
// ephemeral: it carries a fresh session id per Start and disappears when the
// store session ends. Controllers read current states only under that
// session, so state left behind by an earlier process is ignored.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/internal/heartbeat"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
	"github.com/google/uuid"
)

// DefaultRefreshInterval is how often the live-instance node is re-asserted.
const DefaultRefreshInterval = 10 * time.Second

// Common errors for announcer operations.
var (
	ErrAlreadyStarted = errors.New("announcer already started")
	ErrNotStarted     = errors.New("announcer not started")
	ErrSessionTaken   = errors.New("live instance owned by another session")
)

// Announcer keeps a participant's live-instance node in the store.
type Announcer struct {
	accessor    *accessor.DataAccessor
	keys        accessor.KeyBuilder
	participant types.ParticipantID
	interval    time.Duration
	processName string
	version     string
	logger      types.Logger

	mu        sync.Mutex
	session   types.SessionID
	publisher *heartbeat.Publisher
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(a *Announcer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRefreshInterval sets how often the node is re-asserted.
func WithRefreshInterval(d time.Duration) Option {
	return func(a *Announcer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithProcessName records the process name on the live-instance node.
func WithProcessName(name string) Option {
	return func(a *Announcer) {
		a.processName = name
	}
}

// WithVersion records the participant version on the live-instance node.
func WithVersion(version string) Option {
	return func(a *Announcer) {
		a.version = version
	}
}

// New creates an announcer for one participant.
//
// Parameters:
//   - da: Data accessor over the coordination store
//   - cluster: Cluster the participant joins
//   - participant: Participant name, unique within the cluster
//   - opts: Optional configuration
//
// Returns:
//   - *Announcer: Announcer instance
//
// Example:
//
//	ann := liveness.New(da, "mycluster", "localhost_12918", liveness.WithVersion("1.2.0"))
//	if err := ann.Start(ctx); err != nil {
//	    return err
//	}
//	defer ann.Stop(context.Background())
func New(da *accessor.DataAccessor, cluster types.ClusterID, participant types.ParticipantID, opts ...Option) *Announcer {
	a := &Announcer{
		accessor:    da,
		keys:        accessor.NewKeyBuilder(cluster),
		participant: participant,
		interval:    DefaultRefreshInterval,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start creates the live-instance node under a new session and begins
// refreshing it.
//
// Returns:
//   - error: ErrAlreadyStarted if running, types.ErrAlreadyExists when another
//     process announces the same participant name
func (a *Announcer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.publisher != nil {
		return ErrAlreadyStarted
	}

	session := types.SessionID(uuid.NewString())
	if err := a.accessor.CreateProperty(ctx, a.keys.LiveInstance(a.participant), a.liveInstance(session)); err != nil {
		return fmt.Errorf("announce %s: %w", a.participant, err)
	}

	publisher := heartbeat.New(func(ctx context.Context) error {
		return a.refresh(ctx, session)
	}, a.interval)
	publisher.SetLogger(a.logger)
	if err := publisher.Start(ctx); err != nil {
		_ = a.accessor.RemoveProperty(ctx, a.keys.LiveInstance(a.participant))
		return fmt.Errorf("announce %s: %w", a.participant, err)
	}

	a.session = session
	a.publisher = publisher
	a.logger.Info("participant announced", "participant", a.participant, "session", session)

	return nil
}

// Stop stops refreshing and removes the live-instance node.
//
// Returns:
//   - error: ErrNotStarted if not running, or the removal error
func (a *Announcer) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.publisher == nil {
		return ErrNotStarted
	}
	if err := a.publisher.Stop(); err != nil && !errors.Is(err, heartbeat.ErrNotStarted) {
		a.logger.Warn("failed to stop refresh", "error", err)
	}
	a.publisher = nil
	session := a.session
	a.session = ""

	live, err := accessor.GetAs[*model.LiveInstance](ctx, a.accessor, a.keys.LiveInstance(a.participant))
	if err != nil {
		return fmt.Errorf("withdraw %s: %w", a.participant, err)
	}
	if live == nil || live.SessionID() != session {
		return nil
	}
	if err := a.accessor.RemoveProperty(ctx, a.keys.LiveInstance(a.participant)); err != nil && !errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("withdraw %s: %w", a.participant, err)
	}
	a.logger.Info("participant withdrawn", "participant", a.participant, "session", session)

	return nil
}

// SessionID returns the current session, empty when not running.
func (a *Announcer) SessionID() types.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.session
}

// ReportState records the observed state of one replica under the current session.
//
// Parameters:
//   - ctx: Context for cancellation
//   - resource: Resource of the replica
//   - smd: State model the resource follows
//   - partition: Partition of the replica
//   - state: Observed state
//
// Returns:
//   - error: ErrNotStarted if not running, or the write error
func (a *Announcer) ReportState(
	ctx context.Context,
	resource types.ResourceID,
	smd types.StateModelDefID,
	partition types.PartitionID,
	state types.State,
) error {
	session := a.SessionID()
	if session == "" {
		return ErrNotStarted
	}

	cs := model.NewCurrentState(resource)
	cs.SetSessionID(session)
	cs.SetStateModelDefID(smd)
	cs.SetState(partition, state)

	key := a.keys.CurrentState(a.participant, session, resource)
	if err := a.accessor.UpdateProperty(ctx, key, cs); err != nil {
		return fmt.Errorf("report state of %s: %w", partition, err)
	}

	return nil
}

// refresh re-asserts the node of session. A missing node is recreated; a node
// of another session is left alone.
func (a *Announcer) refresh(ctx context.Context, session types.SessionID) error {
	key := a.keys.LiveInstance(a.participant)
	live, err := accessor.GetAs[*model.LiveInstance](ctx, a.accessor, key)
	if err != nil {
		return err
	}

	switch {
	case live == nil:
		a.logger.Warn("live instance lost, announcing again", "participant", a.participant, "session", session)
	case live.SessionID() != session:
		return fmt.Errorf("%w: %s", ErrSessionTaken, live.SessionID())
	}

	return a.accessor.SetProperty(ctx, key, a.liveInstance(session))
}

func (a *Announcer) liveInstance(session types.SessionID) *model.LiveInstance {
	live := model.NewLiveInstance(a.participant, session)
	if a.processName != "" {
		live.SetProcessName(a.processName)
	}
	if a.version != "" {
		live.SetVersion(a.version)
	}

	return live
}
