package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/types"
)

// Common errors for heartbeat operations.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
	ErrNoBeat         = errors.New("beat function not set")
)

// BeatFunc performs one heartbeat.
type BeatFunc func(ctx context.Context) error

// Publisher runs a BeatFunc at a fixed interval until stopped.
type Publisher struct {
	beat     BeatFunc
	interval time.Duration
	timeout  time.Duration
	logger   types.Logger

	beats    atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a new heartbeat publisher.
//
// Parameters:
//   - beat: Function run on every tick
//   - interval: Heartbeat interval (typically a third of the key TTL)
//
// Returns:
//   - *Publisher: New heartbeat publisher instance
//
// Example:
//
//	publisher := heartbeat.New(func(ctx context.Context) error {
//	    _, err := kv.Put(ctx, key, value)
//	    return err
//	}, 2*time.Second)
func New(beat BeatFunc, interval time.Duration) *Publisher {
	return &Publisher{
		beat:     beat,
		interval: interval,
		timeout:  interval,
		logger:   logging.NewNop(),
	}
}

// SetLogger sets the logger used to report failed beats.
//
// Must be called before Start().
func (p *Publisher) SetLogger(logger types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if logger != nil {
		p.logger = logger
	}
}

// Start begins beating in the background.
//
// Runs the first beat immediately, then at regular intervals.
// Continues until Stop() is called.
//
// Parameters:
//   - ctx: Context for the initial beat
//
// Returns:
//   - error: ErrAlreadyStarted if already running, ErrNoBeat if beat is nil,
//     or the error of the initial beat
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.beat == nil {
		return ErrNoBeat
	}

	if err := p.runBeat(ctx); err != nil {
		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.publishLoop(p.stopCh, p.doneCh)

	return nil
}

// Stop stops the publisher and waits for the background goroutine to exit.
//
// Returns:
//   - error: ErrNotStarted if not running
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	close(p.stopCh)
	done := p.doneCh
	p.started = false
	p.mu.Unlock()

	<-done

	return nil
}

func (p *Publisher) publishLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			err := p.runBeat(ctx)
			cancel()

			if err != nil {
				p.logger.Warn("heartbeat failed", "error", err, "failures", p.failures.Load())
			}
		}
	}
}

func (p *Publisher) runBeat(ctx context.Context) error {
	err := p.beat(ctx)
	if err != nil {
		p.failures.Add(1)
		return err
	}
	p.beats.Add(1)

	return nil
}

// Beats returns the number of successful beats.
func (p *Publisher) Beats() uint64 {
	return p.beats.Load()
}

// Failures returns the number of failed beats.
func (p *Publisher) Failures() uint64 {
	return p.failures.Load()
}

// IsStarted returns whether the publisher is currently running.
//
// Returns:
//   - bool: true if started, false otherwise
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}
