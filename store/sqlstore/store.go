// Package sqlstore implements store.Store on database/sql.
//
// One table holds every persistent node as (path, parent, data) where data
// is the JSON record. Direct children are selected by parent and subtrees by
// a substr prefix match. The same statements run on SQLite and PostgreSQL; only the
// row lock taken by Update differs. Ephemeral nodes are kept in an in-memory
// overlay for the lifetime of the Store.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/types"
)

// Config configures a Store.
type Config struct {
	// Driver is the database/sql driver name ("sqlite3" or "postgres").
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`

	// Table is the node table name.
	// Default: "helmsman_nodes"
	Table string `yaml:"table"`
}

// Store is a database/sql-backed store.Store.
type Store struct {
	db      *sql.DB
	ownsDB  bool
	table   string
	q       queries
	overlay *memory.Store
}

var _ store.Store = (*Store)(nil)

// Open connects with cfg, creates the schema when missing and returns a Store
// that closes the database on Close.
//
// The driver must be registered by the caller, typically with a blank import
// of github.com/mattn/go-sqlite3 or github.com/lib/pq.
//
// Example:
//
//	import _ "github.com/lib/pq"
//
//	st, err := sqlstore.Open(ctx, sqlstore.Config{
//	    Driver: "postgres",
//	    DSN:    "postgres://helmsman@localhost/helmsman?sslmode=disable",
//	})
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", cfg.Driver, err)
	}

	s, err := New(ctx, db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true

	return s, nil
}

// New wraps an existing connection pool. The pool is not closed by Close.
//
// Parameters:
//   - ctx: Context for schema creation
//   - db: Open database handle
//   - cfg: Driver selects the dialect; DSN is ignored
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: Unsupported driver, bad table name, or migration failure
func New(ctx context.Context, db *sql.DB, cfg Config) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", types.ErrInvalidConfig, table)
	}

	s := &Store{
		db:      db,
		table:   table,
		q:       buildQueries(table, dialect),
		overlay: memory.New(),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func parentOf(path string) string {
	return path[:strings.LastIndex(path, store.Separator)]
}

func check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := store.Split(path)

	return err
}

func wrapClosed(err error) error {
	if err != nil && strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%w: %w", types.ErrStoreClosed, err)
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

	res, err := s.db.ExecContext(ctx, s.q.insert, path, parentOf(path), string(data))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, wrapClosed(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("create %s: %w", path, types.ErrAlreadyExists)
	}

	return nil
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
	if _, err := s.db.ExecContext(ctx, s.q.upsert, path, parentOf(path), string(data)); err != nil {
		return fmt.Errorf("set %s: %w", path, wrapClosed(err))
	}

	return nil
}

// Update merges rec into the node at path inside one transaction.
func (s *Store) Update(ctx context.Context, path string, rec *types.Record, opt store.Option) error {
	if opt == store.Ephemeral {
		return s.overlay.Update(ctx, path, rec, opt)
	}
	if err := check(ctx, path); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, wrapClosed(err))
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current []byte
		raw     string
	)
	switch err := tx.QueryRowContext(ctx, s.q.selectLock, path).Scan(&raw); {
	case err == nil:
		current = []byte(raw)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("update %s: %w", path, err)
	}

	data, err := store.MergeEncoded(current, rec)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, s.q.upsert, path, parentOf(path), string(data)); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	return tx.Commit()
}

// Get reads the node at path.
func (s *Store) Get(ctx context.Context, path string, opt store.Option) (*types.Record, error) {
	if opt == store.Ephemeral {
		return s.overlay.Get(ctx, path, opt)
	}
	if err := check(ctx, path); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, s.q.selectOne, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", path, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, wrapClosed(err))
	}

	return store.DecodeRecord([]byte(raw))
}

// Remove deletes the node at path and all nodes below it, persistent and ephemeral.
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := check(ctx, path); err != nil {
		return err
	}

	prefix := path + store.Separator
	res, err := s.db.ExecContext(ctx, s.q.remove, path, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, wrapClosed(err))
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
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

	rows, err := s.db.QueryContext(ctx, s.q.children, path)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", path, wrapClosed(err))
	}
	defer rows.Close()

	type child struct {
		path string
		rec  *types.Record
	}
	var children []child
	for rows.Next() {
		var childPath, raw string
		if err := rows.Scan(&childPath, &raw); err != nil {
			return nil, fmt.Errorf("children %s: %w", path, err)
		}
		rec, err := store.DecodeRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("children %s: %s: %w", path, childPath, err)
		}
		children = append(children, child{path: childPath, rec: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children %s: %w", path, err)
	}

	// ORDER BY follows the column collation; callers expect byte order.
	sort.Slice(children, func(i, j int) bool { return children[i].path < children[j].path })
	recs := make([]*types.Record, 0, len(children))
	for _, c := range children {
		recs = append(recs, c.rec)
	}

	return recs, nil
}

// ChildNames returns the sorted names of the direct children of path.
func (s *Store) ChildNames(ctx context.Context, path string, opt store.Option) ([]string, error) {
	if opt == store.Ephemeral {
		return s.overlay.ChildNames(ctx, path, opt)
	}
	if err := check(ctx, path); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q.childNames, path)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", path, wrapClosed(err))
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var childPath string
		if err := rows.Scan(&childPath); err != nil {
			return nil, fmt.Errorf("children %s: %w", path, err)
		}
		names = append(names, store.Base(childPath))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children %s: %w", path, err)
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

// Close drops ephemeral nodes and, when the Store opened the pool, closes it.
func (s *Store) Close(ctx context.Context) error {
	if err := s.overlay.Close(ctx); err != nil {
		return err
	}
	if s.ownsDB {
		return s.db.Close()
	}

	return nil
}
