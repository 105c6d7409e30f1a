// Package boltdb implements store.Store on a single bbolt file.
//
// It serves single-node deployments and local development. Persistent nodes
// are kept in one bucket keyed by their full path, so a cursor seek on
// "<path>/" walks a subtree in order. Ephemeral nodes only need to live as
// long as the process and are held in an in-memory overlay.
package boltdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/types"
)

var bucketNodes = []byte("nodes")

// Store is a bbolt-backed store.Store.
type Store struct {
	db      *bolt.DB
	overlay *memory.Store
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database file at path.
//
// Parameters:
//   - path: Database file; parent directories are created
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: File or bucket creation failure
//
// Example:
//
//	st, err := boltdb.Open(filepath.Join(dataDir, "helmsman.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNodes); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketNodes, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, overlay: memory.New()}, nil
}

func check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := store.Split(path)

	return err
}

func (s *Store) update(fn func(b *bolt.Bucket) error) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucketNodes))
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return types.ErrStoreClosed
	}

	return err
}

func (s *Store) view(fn func(b *bolt.Bucket) error) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucketNodes))
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return types.ErrStoreClosed
	}

	return err
}

// Create writes rec at path unless a node already exists there.
func (s *Store) Create(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if opt == store.Ephemeral {
		return s.overlay.Create(ctx, path, rec, opt)
	}
	if err := check(ctx, path); err != nil {
		return err
	}
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return err
	}

	return s.update(func(b *bolt.Bucket) error {
		if b.Get([]byte(path)) != nil {
			return fmt.Errorf("create %s: %w", path, types.ErrAlreadyExists)
		}
		return b.Put([]byte(path), data)
	})
}

// Set writes rec at path, replacing any existing node.
func (s *Store) Set(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if opt == store.Ephemeral {
		return s.overlay.Set(ctx, path, rec, opt)
	}
	if err := check(ctx, path); err != nil {
		return err
	}
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return err
	}

	return s.update(func(b *bolt.Bucket) error {
		return b.Put([]byte(path), data)
	})
}

// Update merges rec into the node at path inside one write transaction.
func (s *Store) Update(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if opt == store.Ephemeral {
		return s.overlay.Update(ctx, path, rec, opt)
	}
	if err := check(ctx, path); err != nil {
		return err
	}

	return s.update(func(b *bolt.Bucket) error {
		var current []byte
		if v := b.Get([]byte(path)); v != nil {
			current = bytes.Clone(v)
		}
		data, err := store.MergeEncoded(current, rec)
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		return b.Put([]byte(path), data)
	})
}

// Get reads the node at path.
func (s *Store) Get(ctx context.Context, path string, opt store.Option) (*types.Record, error) {
	if opt == store.Ephemeral {
		return s.overlay.Get(ctx, path, opt)
	}
	if err := check(ctx, path); err != nil {
		return nil, err
	}

	var rec *types.Record
	err := s.view(func(b *bolt.Bucket) error {
		data := b.Get([]byte(path))
		if data == nil {
			return fmt.Errorf("get %s: %w", path, types.ErrNotFound)
		}
		var err error
		rec, err = store.DecodeRecord(data)
		return err
	})

	return rec, err
}

// Remove deletes the node at path and all nodes below it, persistent and ephemeral.
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := check(ctx, path); err != nil {
		return err
	}

	removed := 0
	err := s.update(func(b *bolt.Bucket) error {
		var victims [][]byte
		if b.Get([]byte(path)) != nil {
			victims = append(victims, []byte(path))
		}
		prefix := []byte(path + store.Separator)
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			victims = append(victims, bytes.Clone(k))
		}
		for _, k := range victims {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(victims)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.overlay.Remove(ctx, path); err == nil {
		removed++
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("remove %s: %w", path, types.ErrNotFound)
	}

	return nil
}

// Children returns the records of the direct children of path, ordered by name.
func (s *Store) Children(ctx context.Context, path string, opt store.Option) ([]*types.Record, error) {
	if opt == store.Ephemeral {
		return s.overlay.Children(ctx, path, opt)
	}
	if err := check(ctx, path); err != nil {
		return nil, err
	}

	recs := []*types.Record{}
	err := s.view(func(b *bolt.Bucket) error {
		return eachChild(b, path, func(_ string, data []byte) error {
			rec, err := store.DecodeRecord(data)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})

	return recs, err
}

// ChildNames returns the sorted names of the direct children of path.
func (s *Store) ChildNames(ctx context.Context, path string, opt store.Option) ([]string, error) {
	if opt == store.Ephemeral {
		return s.overlay.ChildNames(ctx, path, opt)
	}
	if err := check(ctx, path); err != nil {
		return nil, err
	}

	names := []string{}
	err := s.view(func(b *bolt.Bucket) error {
		return eachChild(b, path, func(child string, _ []byte) error {
			names = append(names, store.Base(child))
			return nil
		})
	})
	sort.Strings(names)

	return names, err
}

// eachChild visits direct children of parent in key order.
func eachChild(b *bolt.Bucket, parent string, fn func(path string, data []byte) error) error {
	prefix := []byte(parent + store.Separator)
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if store.IsChild(parent, string(k)) {
			if err := fn(string(k), v); err != nil {
				return err
			}
		}
	}

	return nil
}

// CreateChildren creates each node with its own option.
func (s *Store) CreateChildren(ctx context.Context, paths []string, recs []*types.Record, opts []store.Option) []error {
	return store.RunBatch(ctx, paths, recs, opts, s.Create)
}

// SetChildren sets each node with its own option.
func (s *Store) SetChildren(ctx context.Context, paths []string, recs []*types.Record, opts []store.Option) []error {
	return store.RunBatch(ctx, paths, recs, opts, s.Set)
}

// Close drops ephemeral nodes and closes the database file.
func (s *Store) Close(ctx context.Context) error {
	if err := s.overlay.Close(ctx); err != nil {
		return err
	}
	if err := s.db.Close(); err != nil && !errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
