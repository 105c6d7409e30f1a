// Package memory provides an in-process store.Store.
//
// The memory store keeps every node in a concurrent map. It backs unit tests,
// embedded single-process deployments, and the ephemeral overlay of the file
// and SQL backends. Ephemeral nodes are dropped by Close and ExpireEphemeral.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

type node struct {
	rec *types.Record
	opt store.Option
}

// Store is an in-memory store.Store and store.Watcher.
type Store struct {
	nodes    *xsync.Map[string, node]
	watchers *xsync.Map[uint64, *subscriber]
	nextID   atomic.Uint64
	closed   atomic.Bool
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

// New creates an empty memory store.
//
// Returns:
//   - *Store: Ready-to-use store
//
// Example:
//
//	st := memory.New()
//	defer st.Close(ctx)
//	acc := accessor.New("mycluster", st)
func New() *Store {
	return &Store{
		nodes:    xsync.NewMap[string, node](),
		watchers: xsync.NewMap[uint64, *subscriber](),
	}
}

func (s *Store) check(ctx context.Context, path string) error {
	if s.closed.Load() {
		return types.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := store.Split(path)

	return err
}

// Create writes rec at path unless a node already exists there.
func (s *Store) Create(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	if _, loaded := s.nodes.LoadOrStore(path, node{rec: rec.Clone(), opt: opt}); loaded {
		return fmt.Errorf("create %s: %w", path, types.ErrAlreadyExists)
	}
	s.notify(path, store.EventPut)

	return nil
}

// Set writes rec at path, replacing any existing node.
func (s *Store) Set(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	s.nodes.Store(path, node{rec: rec.Clone(), opt: opt})
	s.notify(path, store.EventPut)

	return nil
}

// Update merges rec into the node at path, creating it when absent.
func (s *Store) Update(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}
	s.nodes.Compute(path, func(old node, loaded bool) (node, xsync.ComputeOp) {
		if !loaded {
			return node{rec: rec.Clone(), opt: opt}, xsync.UpdateOp
		}
		merged := old.rec.Clone()
		merged.Merge(rec)

		return node{rec: merged, opt: old.opt}, xsync.UpdateOp
	})
	s.notify(path, store.EventPut)

	return nil
}

// Get reads the node at path. The option is ignored; memory nodes share one namespace.
func (s *Store) Get(ctx context.Context, path string, _ store.Option) (*types.Record, error) {
	if err := s.check(ctx, path); err != nil {
		return nil, err
	}
	n, ok := s.nodes.Load(path)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, types.ErrNotFound)
	}

	return n.rec.Clone(), nil
}

// Remove deletes the node at path and all nodes below it.
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := s.check(ctx, path); err != nil {
		return err
	}

	var victims []string
	s.nodes.Range(func(p string, _ node) bool {
		if store.IsWithin(path, p) {
			victims = append(victims, p)
		}
		return true
	})
	if len(victims) == 0 {
		return fmt.Errorf("remove %s: %w", path, types.ErrNotFound)
	}
	for _, p := range victims {
		if _, ok := s.nodes.LoadAndDelete(p); ok {
			s.notify(p, store.EventDelete)
		}
	}

	return nil
}

// Children returns the records of the direct children of path, ordered by name.
func (s *Store) Children(ctx context.Context, path string, _ store.Option) ([]*types.Record, error) {
	if err := s.check(ctx, path); err != nil {
		return nil, err
	}

	type child struct {
		path string
		rec  *types.Record
	}
	var children []child
	s.nodes.Range(func(p string, n node) bool {
		if store.IsChild(path, p) {
			children = append(children, child{path: p, rec: n.rec.Clone()})
		}
		return true
	})
	sort.Slice(children, func(i, j int) bool { return children[i].path < children[j].path })

	recs := make([]*types.Record, 0, len(children))
	for _, c := range children {
		recs = append(recs, c.rec)
	}

	return recs, nil
}

// ChildNames returns the sorted names of the direct children of path.
func (s *Store) ChildNames(ctx context.Context, path string, _ store.Option) ([]string, error) {
	if err := s.check(ctx, path); err != nil {
		return nil, err
	}

	names := []string{}
	s.nodes.Range(func(p string, _ node) bool {
		if store.IsChild(path, p) {
			names = append(names, store.Base(p))
		}
		return true
	})
	sort.Strings(names)

	return names, nil
}

// CreateChildren creates each node with its own option.
func (s *Store) CreateChildren(ctx context.Context, paths []string, recs []*types.Record, opts []store.Option) []error {
	return store.RunBatch(ctx, paths, recs, opts, s.Create)
}

// SetChildren sets each node with its own option.
func (s *Store) SetChildren(ctx context.Context, paths []string, recs []*types.Record, opts []store.Option) []error {
	return store.RunBatch(ctx, paths, recs, opts, s.Set)
}

// ExpireEphemeral drops every ephemeral node, as if the writing session expired.
//
// Returns:
//   - int: Number of nodes dropped
func (s *Store) ExpireEphemeral() int {
	var dropped int
	s.nodes.Range(func(p string, n node) bool {
		if n.opt == store.Ephemeral {
			if _, ok := s.nodes.LoadAndDelete(p); ok {
				dropped++
				s.notify(p, store.EventDelete)
			}
		}
		return true
	})

	return dropped
}

// Len returns the number of nodes held.
func (s *Store) Len() int {
	return s.nodes.Size()
}

// Close drops ephemeral nodes and ends all watches. Further calls fail with types.ErrStoreClosed.
func (s *Store) Close(_ context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.ExpireEphemeral()
	s.watchers.Range(func(id uint64, sub *subscriber) bool {
		s.watchers.Delete(id)
		sub.close()
		return true
	})

	return nil
}

// Watch streams events for every node at or below prefix.
func (s *Store) Watch(ctx context.Context, prefix string) (<-chan store.Event, func(), error) {
	if s.closed.Load() {
		return nil, nil, types.ErrStoreClosed
	}

	id := s.nextID.Add(1)
	sub := &subscriber{prefix: prefix, ch: make(chan store.Event, 64)}
	s.watchers.Store(id, sub)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if sub, ok := s.watchers.LoadAndDelete(id); ok {
				sub.close()
			}
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	return sub.ch, stop, nil
}

func (s *Store) notify(path string, typ store.EventType) {
	s.watchers.Range(func(_ uint64, sub *subscriber) bool {
		if store.IsWithin(sub.prefix, path) {
			sub.trySend(store.Event{Path: path, Type: typ})
		}
		return true
	})
}

// subscriber delivers events to one watcher without blocking writers.
type subscriber struct {
	prefix string
	ch     chan store.Event
	mu     sync.Mutex
	closed bool
}

func (s *subscriber) trySend(ev store.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	default:
		// Slow watcher; it catches up through polling.
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
