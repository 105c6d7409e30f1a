package sqlstore

import (
	"context"
	"fmt"
	"regexp"
)

// Dialect selects the SQL flavour of the target database.
type Dialect int

const (
	// SQLite targets github.com/mattn/go-sqlite3 (driver name "sqlite3").
	SQLite Dialect = iota

	// Postgres targets github.com/lib/pq (driver name "postgres").
	Postgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// DialectFor maps a database/sql driver name to a Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// DefaultTable is the node table name used when none is configured.
const DefaultTable = "helmsman_nodes"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type queries struct {
	insert     string
	upsert     string
	selectOne  string
	selectLock string
	remove     string
	children   string
	childNames string
}

func buildQueries(table string, d Dialect) queries {
	q := queries{
		insert:     fmt.Sprintf(`INSERT INTO %s (path, parent, data) VALUES ($1, $2, $3) ON CONFLICT (path) DO NOTHING`, table),
		upsert:     fmt.Sprintf(`INSERT INTO %s (path, parent, data) VALUES ($1, $2, $3) ON CONFLICT (path) DO UPDATE SET data = excluded.data`, table),
		selectOne:  fmt.Sprintf(`SELECT data FROM %s WHERE path = $1`, table),
		remove:     fmt.Sprintf(`DELETE FROM %s WHERE path = $1 OR substr(path, 1, $2) = $3`, table),
		children:   fmt.Sprintf(`SELECT path, data FROM %s WHERE parent = $1 ORDER BY path`, table),
		childNames: fmt.Sprintf(`SELECT path FROM %s WHERE parent = $1 ORDER BY path`, table),
	}
	q.selectLock = q.selectOne
	if d == Postgres {
		q.selectLock += " FOR UPDATE"
	}

	return q
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			path   TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			data   TEXT NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (parent)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}

	return nil
}
