/*
Package sqlite provides the SQLite-backed implementation of store.ItemStore.

PURPOSE:
  Persists the flat item collection in a single `items` table keyed by
  (partition_key, sort_key), with attributes stored as JSON. The same
  layout ports directly to PostgreSQL or a document store - only the
  dialect differs.

SCHEMA:
  items(partition_key, sort_key, attrs, created_at, updated_at)
  PRIMARY KEY (partition_key, sort_key)

PREFIX QUERIES:
  "All balance logs for a user" style lookups are sort-key prefix
  queries. Prefixes are ASCII, so a prefix match is the half-open range
  [prefix, prefix+0xFF) on the sort key, which the primary key index
  serves directly.

CONCURRENCY:
  Uses sync.RWMutex for in-process thread safety. SQLite is opened with
  WAL so readers don't block behind the single writer.

ATOMIC BATCHES:
  WriteBatch runs inside one sql.Tx. The ledger relies on this for the
  balance-write-plus-log-entry invariant.

USAGE:
  st, err := sqlite.New("./data/coinledger.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()

SEE ALSO:
  - store/store.go: interface definition
  - store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chorebank/coinledger/store"
)

// Store implements store.ItemStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		partition_key TEXT NOT NULL,
		sort_key      TEXT NOT NULL,
		attrs         TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		PRIMARY KEY (partition_key, sort_key)
	);

	-- Cross-partition discriminator scans (daily reset, user listing)
	CREATE INDEX IF NOT EXISTS idx_items_sort_key
		ON items(sort_key);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// WRITES
// =============================================================================

const upsertSQL = `
	INSERT INTO items (partition_key, sort_key, attrs, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(partition_key, sort_key) DO UPDATE SET
		attrs = excluded.attrs,
		updated_at = excluded.updated_at
`

func (s *Store) Put(ctx context.Context, it store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putItem(ctx, s.db, it)
}

func putItem(ctx context.Context, db execer, it store.Item) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := db.ExecContext(ctx, upsertSQL,
		it.Partition, it.Sort, string(it.Attrs), now, now,
	); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (s *Store) PutNew(ctx context.Context, it store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (partition_key, sort_key, attrs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(partition_key, sort_key) DO NOTHING`,
		it.Partition, it.Sort, string(it.Attrs), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, it store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET attrs = ?, updated_at = ?
		WHERE partition_key = ? AND sort_key = ?`,
		string(it.Attrs), now, it.Partition, it.Sort,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, k store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE partition_key = ? AND sort_key = ?",
		k.Partition, k.Sort,
	); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

func (s *Store) DeleteExisting(ctx context.Context, k store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM items WHERE partition_key = ? AND sort_key = ?",
		k.Partition, k.Sort,
	)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

// WriteBatch applies all puts and deletes in one transaction.
func (s *Store) WriteBatch(ctx context.Context, ops []store.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch {
		case op.Put != nil:
			if err := putItem(ctx, tx, *op.Put); err != nil {
				return err
			}
		case op.Delete != nil:
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM items WHERE partition_key = ? AND sort_key = ?",
				op.Delete.Partition, op.Delete.Sort,
			); err != nil {
				return fmt.Errorf("failed to delete item: %w", err)
			}
		}
	}

	return tx.Commit()
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) Get(ctx context.Context, k store.Key) (*store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var attrs string
	err := s.db.QueryRowContext(ctx,
		"SELECT attrs FROM items WHERE partition_key = ? AND sort_key = ?",
		k.Partition, k.Sort,
	).Scan(&attrs)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &store.Item{Key: k, Attrs: []byte(attrs)}, nil
}

func (s *Store) Query(ctx context.Context, partition, sortPrefix string) ([]store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT partition_key, sort_key, attrs FROM items
		WHERE partition_key = ? AND sort_key >= ? AND sort_key < ?
		ORDER BY sort_key ASC
	`
	return s.queryItems(ctx, query, partition, sortPrefix, prefixEnd(sortPrefix))
}

func (s *Store) ScanPrefix(ctx context.Context, sortPrefix string) ([]store.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT partition_key, sort_key, attrs FROM items
		WHERE sort_key >= ? AND sort_key < ?
		ORDER BY partition_key ASC, sort_key ASC
	`
	return s.queryItems(ctx, query, sortPrefix, prefixEnd(sortPrefix))
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]store.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []store.Item
	for rows.Next() {
		var it store.Item
		var attrs string
		if err := rows.Scan(&it.Partition, &it.Sort, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Attrs = []byte(attrs)
		items = append(items, it)
	}
	return items, rows.Err()
}

// prefixEnd returns the smallest string greater than every string with
// the given prefix. Sort keys are ASCII, so appending 0xFF is enough.
func prefixEnd(prefix string) string {
	return prefix + "\xff"
}
