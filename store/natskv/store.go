// Package natskv implements store.Store on NATS JetStream KeyValue buckets.
//
// Persistent nodes live in one bucket without TTL. Ephemeral nodes live in a
// second bucket whose entries expire after EphemeralTTL; the owning Store
// rewrites them on a heartbeat so they survive exactly as long as the
// process does. Close deletes the owned ephemeral nodes at once.
//
// Paths map to KV keys by escaping each segment and joining with ".", so
// "/mycluster/LIVEINSTANCES/host_12000" becomes "mycluster.LIVEINSTANCES.host_12000".
// Direct children are listed with the "<key>.*" filter and recursive removal
// uses "<key>.>".
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/helmsman/internal/heartbeat"
	"github.com/arloliu/helmsman/internal/kvutil"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/internal/natsutil"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// Config configures the JetStream buckets backing a Store.
type Config struct {
	// Bucket is the persistent bucket name.
	// Default: "helmsman"
	Bucket string `yaml:"bucket"`

	// EphemeralBucket is the TTL bucket name.
	// Default: Bucket + "-ephemeral"
	EphemeralBucket string `yaml:"ephemeralBucket"`

	// EphemeralTTL is how long an ephemeral node outlives its last heartbeat.
	// Default: 10s
	EphemeralTTL time.Duration `yaml:"ephemeralTTL"`

	// KeepaliveInterval is how often owned ephemeral nodes are rewritten.
	// Default: EphemeralTTL / 3
	KeepaliveInterval time.Duration `yaml:"keepaliveInterval"`

	// Replicas is the bucket replication factor.
	// Default: 1
	Replicas int `yaml:"replicas"`

	// MemoryStorage keeps the persistent bucket in memory instead of on disk.
	MemoryStorage bool `yaml:"memoryStorage"`

	// MaxUpdateRetries bounds compare-and-set attempts of Update.
	// Default: 8
	MaxUpdateRetries int `yaml:"maxUpdateRetries"`
}

// SetDefaults fills zero fields with defaults.
func (c *Config) SetDefaults() {
	if c.Bucket == "" {
		c.Bucket = "helmsman"
	}
	if c.EphemeralBucket == "" {
		c.EphemeralBucket = c.Bucket + "-ephemeral"
	}
	if c.EphemeralTTL <= 0 {
		c.EphemeralTTL = 10 * time.Second
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = c.EphemeralTTL / 3
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.MaxUpdateRetries <= 0 {
		c.MaxUpdateRetries = 8
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for keepalive and cleanup failures.
func WithLogger(logger types.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is a store.Store and store.Watcher backed by JetStream KV.
type Store struct {
	cfg       Config
	persist   jetstream.KeyValue
	ephemeral jetstream.KeyValue
	logger    types.Logger

	// owned maps ephemeral keys written through this Store to their last value.
	owned     *xsync.Map[string, []byte]
	keepalive *heartbeat.Publisher
	closed    atomic.Bool
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

// New opens (creating when needed) the buckets and starts the ephemeral keepalive.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - nc: Connected NATS client; the caller keeps ownership
//   - cfg: Bucket configuration; zero fields take defaults
//   - opts: Optional settings such as WithLogger
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: Bucket creation or initial keepalive failure
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	st, err := natskv.New(ctx, nc, natskv.Config{Bucket: "helmsman-prod"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
func New(ctx context.Context, nc *nats.Conn, cfg Config, opts ...Option) (*Store, error) {
	if nc == nil {
		return nil, fmt.Errorf("%w: nats connection is required", types.ErrInvalidConfig)
	}
	cfg.SetDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	storage := jetstream.FileStorage
	if cfg.MemoryStorage {
		storage = jetstream.MemoryStorage
	}
	persist, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Helmsman persistent cluster properties",
		History:     1,
		Storage:     storage,
		Replicas:    cfg.Replicas,
	}, 3)
	if err != nil {
		return nil, err
	}
	ephemeral, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.EphemeralBucket,
		Description: "Helmsman session-bound cluster properties",
		History:     1,
		TTL:         cfg.EphemeralTTL,
		Storage:     jetstream.MemoryStorage,
		Replicas:    cfg.Replicas,
	}, 3)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:       cfg,
		persist:   persist,
		ephemeral: ephemeral,
		logger:    logging.NewNop(),
		owned:     xsync.NewMap[string, []byte](),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.keepalive = heartbeat.New(s.refreshOwned, cfg.KeepaliveInterval)
	s.keepalive.SetLogger(s.logger)
	if err := s.keepalive.Start(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) bucket(opt store.Option) jetstream.KeyValue {
	if opt == store.Ephemeral {
		return s.ephemeral
	}

	return s.persist
}

func (s *Store) key(ctx context.Context, path string) (string, error) {
	if s.closed.Load() {
		return "", types.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return pathToKey(path)
}

func (s *Store) own(opt store.Option, key string, data []byte) {
	if opt == store.Ephemeral {
		s.owned.Store(key, data)
	}
}

// Create writes rec at path unless a node already exists there.
func (s *Store) Create(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	key, err := s.key(ctx, path)
	if err != nil {
		return err
	}
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.bucket(opt).Create(ctx, key, data); err != nil {
		return natsutil.Translate("create", path, err)
	}
	s.own(opt, key, data)

	return nil
}

// Set writes rec at path, replacing any existing node.
func (s *Store) Set(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	key, err := s.key(ctx, path)
	if err != nil {
		return err
	}
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.bucket(opt).Put(ctx, key, data); err != nil {
		return natsutil.Translate("set", path, err)
	}
	s.own(opt, key, data)

	return nil
}

// Update merges rec into the node at path with compare-and-set retries.
func (s *Store) Update(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	key, err := s.key(ctx, path)
	if err != nil {
		return err
	}
	written, err := kvutil.UpdateWithRetry(ctx, s.bucket(opt), key, func(current []byte) ([]byte, error) {
		return store.MergeEncoded(current, rec)
	}, s.cfg.MaxUpdateRetries)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRecord) {
			return fmt.Errorf("update %s: %w", path, err)
		}
		return natsutil.Translate("update", path, err)
	}
	s.own(opt, key, written)

	return nil
}

// Get reads the node at path from the bucket selected by opt.
func (s *Store) Get(ctx context.Context, path string, opt store.Option) (*types.Record, error) {
	key, err := s.key(ctx, path)
	if err != nil {
		return nil, err
	}
	entry, err := s.bucket(opt).Get(ctx, key)
	if err != nil {
		return nil, natsutil.Translate("get", path, err)
	}

	return store.DecodeRecord(entry.Value())
}

// Remove deletes the node at path and all nodes below it in both buckets.
func (s *Store) Remove(ctx context.Context, path string) error {
	key, err := s.key(ctx, path)
	if err != nil {
		return err
	}

	removed := 0
	for _, kv := range []jetstream.KeyValue{s.persist, s.ephemeral} {
		keys, err := listKeys(ctx, kv, key, key+".>")
		if err != nil {
			return natsutil.Translate("remove", path, err)
		}
		for _, k := range keys {
			if err := kv.Delete(ctx, k); err != nil {
				return natsutil.Translate("remove", path, err)
			}
			s.owned.Delete(k)
			removed++
		}
	}
	if removed == 0 {
		return fmt.Errorf("remove %s: %w", path, types.ErrNotFound)
	}

	return nil
}

// Children returns the records of the direct children of path, ordered by name.
func (s *Store) Children(ctx context.Context, path string, opt store.Option) ([]*types.Record, error) {
	key, err := s.key(ctx, path)
	if err != nil {
		return nil, err
	}
	kv := s.bucket(opt)
	keys, err := listKeys(ctx, kv, key+".*")
	if err != nil {
		return nil, natsutil.Translate("children", path, err)
	}

	type child struct {
		path string
		rec  *types.Record
	}
	children := make([]child, 0, len(keys))
	for _, k := range keys {
		entry, err := kv.Get(ctx, k)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			// Removed between listing and reading.
			continue
		}
		if err != nil {
			return nil, natsutil.Translate("children", path, err)
		}
		childPath, err := keyToPath(k)
		if err != nil {
			return nil, err
		}
		rec, err := store.DecodeRecord(entry.Value())
		if err != nil {
			return nil, fmt.Errorf("children %s: %s: %w", path, childPath, err)
		}
		children = append(children, child{path: childPath, rec: rec})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].path < children[j].path })

	recs := make([]*types.Record, 0, len(children))
	for _, c := range children {
		recs = append(recs, c.rec)
	}

	return recs, nil
}

// ChildNames returns the sorted names of the direct children of path.
func (s *Store) ChildNames(ctx context.Context, path string, opt store.Option) ([]string, error) {
	key, err := s.key(ctx, path)
	if err != nil {
		return nil, err
	}
	keys, err := listKeys(ctx, s.bucket(opt), key+".*")
	if err != nil {
		return nil, natsutil.Translate("children", path, err)
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		childPath, err := keyToPath(k)
		if err != nil {
			return nil, err
		}
		names = append(names, store.Base(childPath))
	}
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

// Close stops the keepalive and deletes every ephemeral node owned by this Store.
// The NATS connection is left open.
func (s *Store) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.keepalive.Stop(); err != nil && !errors.Is(err, heartbeat.ErrNotStarted) {
		s.logger.Warn("failed to stop ephemeral keepalive", "error", err)
	}

	var errs []error
	s.owned.Range(func(key string, _ []byte) bool {
		if err := s.ephemeral.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete ephemeral %s: %w", key, err))
		}
		s.owned.Delete(key)
		return true
	})

	return errors.Join(errs...)
}

// OwnedEphemeral returns the number of ephemeral nodes kept alive by this Store.
func (s *Store) OwnedEphemeral() int {
	return s.owned.Size()
}

// refreshOwned rewrites owned ephemeral nodes, resetting their TTL.
func (s *Store) refreshOwned(ctx context.Context) error {
	if s.closed.Load() {
		return nil
	}

	var firstErr error
	s.owned.Range(func(key string, data []byte) bool {
		if _, err := s.ephemeral.Put(ctx, key, data); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("refresh %s: %w", key, err)
			}
		}
		return ctx.Err() == nil
	})

	return firstErr
}

// Watch streams puts and deletes at or below prefix from both buckets.
//
// Entries that expire through the ephemeral TTL produce no event; watchers
// that must notice vanished sessions keep polling as well.
func (s *Store) Watch(ctx context.Context, prefix string) (<-chan store.Event, func(), error) {
	key, err := s.key(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	var watchers []jetstream.KeyWatcher
	for _, kv := range []jetstream.KeyValue{s.persist, s.ephemeral} {
		w, err := kv.WatchFiltered(watchCtx, []string{key, key + ".>"}, jetstream.UpdatesOnly())
		if err != nil {
			cancel()
			for _, started := range watchers {
				_ = started.Stop()
			}
			return nil, nil, natsutil.Translate("watch", prefix, err)
		}
		watchers = append(watchers, w)
	}

	out := make(chan store.Event, 64)
	var wg sync.WaitGroup
	for _, w := range watchers {
		wg.Add(1)
		go func(w jetstream.KeyWatcher) {
			defer wg.Done()
			forward(watchCtx, w, out, s.logger)
		}(w)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			for _, w := range watchers {
				_ = w.Stop()
			}
		})
	}
	go func() {
		<-watchCtx.Done()
		stop()
		wg.Wait()
		close(out)
	}()

	return out, stop, nil
}

func forward(ctx context.Context, w jetstream.KeyWatcher, out chan<- store.Event, logger types.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue
			}
			path, err := keyToPath(entry.Key())
			if err != nil {
				logger.Warn("ignoring undecodable KV key", "key", entry.Key(), "error", err)
				continue
			}
			ev := store.Event{Path: path, Type: store.EventPut}
			if entry.Operation() != jetstream.KeyValuePut {
				ev.Type = store.EventDelete
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func listKeys(ctx context.Context, kv jetstream.KeyValue, filters ...string) ([]string, error) {
	lister, err := kv.ListKeysFiltered(ctx, filters...)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}

	return keys, nil
}
