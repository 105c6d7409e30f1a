// Package monitor detects cluster changes that call for a reconciliation pass.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// ChangeFunc is invoked when a change is detected or the poll interval elapses.
type ChangeFunc func(ctx context.Context) error

// ChangeMonitor watches a store prefix and invokes a callback on changes.
//
// It provides hybrid monitoring:
//   - Watcher (primary): fast detection through store.Watcher, debounced
//   - Polling (fallback): a callback every poll interval
//
// Backends that cannot watch are served by polling alone.
type ChangeMonitor struct {
	st       store.Store
	prefix   string
	interval time.Duration
	debounce time.Duration
	onChange ChangeFunc
	logger   types.Logger
	ignore   []string

	watchMu   sync.Mutex
	stopWatch func()

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a change monitor.
//
// Parameters:
//   - st: Coordination store; watched when it implements store.Watcher
//   - prefix: Store path below which every change triggers the callback
//   - interval: Polling interval
//   - debounce: Quiet period after the last event before the callback runs
//   - onChange: Callback invoked on detected changes
//   - logger: Logger for monitoring events (nil for nop)
//
// Returns:
//   - *ChangeMonitor: A new change monitor instance
func New(
	st store.Store,
	prefix string,
	interval time.Duration,
	debounce time.Duration,
	onChange ChangeFunc,
	logger types.Logger,
) *ChangeMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &ChangeMonitor{
		st:       st,
		prefix:   prefix,
		interval: interval,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Ignore excludes events at or below each prefix from triggering the callback.
//
// Must be called before Start().
func (m *ChangeMonitor) Ignore(prefixes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ignore = append(m.ignore, prefixes...)
}

// Start begins monitoring in a background goroutine.
//
// Parameters:
//   - ctx: Context for cancellation (affects watcher lifetime)
//
// Returns:
//   - error: Error if already started or already stopped
func (m *ChangeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return types.ErrMonitorAlreadyStopped
	}
	if m.started {
		return types.ErrMonitorAlreadyStarted
	}

	m.started = true
	go m.run(ctx)

	return nil
}

// Stop stops the monitor and waits for its goroutines to exit.
//
// Subsequent calls return nil immediately.
//
// Returns:
//   - error: ErrMonitorNotStarted if Stop is called before Start
func (m *ChangeMonitor) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return types.ErrMonitorNotStarted
	}
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh
	m.closeWatch()

	return nil
}

// Watching reports whether store events are being received.
func (m *ChangeMonitor) Watching() bool {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	return m.stopWatch != nil
}

func (m *ChangeMonitor) run(ctx context.Context) {
	defer close(m.doneCh)

	events, err := m.openWatch(ctx)
	if err != nil {
		m.logger.Warn("failed to start watcher, falling back to polling only", "error", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	debounceTimer := time.NewTimer(m.debounce)
	debounceTimer.Stop()
	var pending bool

	for {
		select {
		case <-ticker.C:
			m.invoke(ctx, "poll")

		case ev, ok := <-events:
			if !ok {
				m.logger.Warn("watcher closed, continuing with polling only", "prefix", m.prefix)
				m.closeWatch()
				events = nil
				continue
			}
			if m.ignored(ev.Path) {
				continue
			}
			m.logger.Debug("watcher: received event", "path", ev.Path, "type", ev.Type)
			if !pending {
				pending = true
				debounceTimer.Reset(m.debounce)
			}

		case <-debounceTimer.C:
			if pending {
				pending = false
				m.invoke(ctx, "watch")
			}

		case <-m.stopCh:
			debounceTimer.Stop()
			return

		case <-ctx.Done():
			debounceTimer.Stop()
			return
		}
	}
}

func (m *ChangeMonitor) ignored(path string) bool {
	for _, prefix := range m.ignore {
		if store.IsWithin(prefix, path) {
			return true
		}
	}

	return false
}

func (m *ChangeMonitor) invoke(ctx context.Context, source string) {
	if m.onChange == nil {
		return
	}
	if err := m.onChange(ctx); err != nil {
		m.logger.Error("change callback failed", "source", source, "error", err)
	}
}

// openWatch subscribes to store events. A nil channel is returned when the
// store cannot watch; receiving from it blocks forever.
func (m *ChangeMonitor) openWatch(ctx context.Context) (<-chan store.Event, error) {
	w, ok := m.st.(store.Watcher)
	if !ok {
		m.logger.Info("store cannot watch, polling only", "interval", m.interval)
		return nil, nil
	}

	events, stop, err := w.Watch(ctx, m.prefix)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", m.prefix, err)
	}

	m.watchMu.Lock()
	m.stopWatch = stop
	m.watchMu.Unlock()

	m.logger.Info("watcher started for fast change detection", "prefix", m.prefix)

	return events, nil
}

func (m *ChangeMonitor) closeWatch() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
		m.logger.Debug("watcher stopped")
	}
}
