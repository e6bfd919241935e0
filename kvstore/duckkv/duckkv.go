// Package duckkv backs kvstore.Store with an embedded DuckDB database,
// queried through database/sql the way the teacher's DuckDBClient opens
// and pings its connection (internal/duckdb_conn.go). DuckDB serializes
// writers internally, so this store pins the pool to a single connection.
package duckkv

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brindledata/recordquery/kvstore"
)

// Store backs kvstore.Store with an embedded DuckDB table of
// (key BLOB PRIMARY KEY, value BLOB).
type Store struct {
	db        *sql.DB
	tableName string
}

// Open opens (creating if absent) a DuckDB-backed store at path, or an
// in-memory database when path is ":memory:" or empty.
func Open(ctx context.Context, path, tableName string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckkv: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckkv: ping: %w", err)
	}

	createStmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (key BLOB PRIMARY KEY, value BLOB)", tableName)
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckkv: create table: %w", err)
	}

	return &Store{db: db, tableName: tableName}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or overwrites a key, used to seed fixtures and by the
// write path outside of the query engine's own read-only scope.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		s.tableName)
	_, err := s.db.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("duckkv: put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []byte, _ bool) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.tableName)
	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("duckkv: get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Range(ctx context.Context, begin, end []byte, _ bool) (kvstore.RangeIter, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if end == nil {
		query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 ORDER BY key", s.tableName)
		rows, err = s.db.QueryContext(ctx, query, begin)
	} else {
		query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 AND key < $2 ORDER BY key", s.tableName)
		rows, err = s.db.QueryContext(ctx, query, begin, end)
	}
	if err != nil {
		return nil, fmt.Errorf("duckkv: range: %w", err)
	}
	return &rowsIter{rows: rows}, nil
}

// Begin opens a database/sql transaction. DuckDB's single-connection pool
// means concurrent Begin calls serialize behind the driver, matching the
// single-writer model spec.md §5 assumes.
func (s *Store) Begin(ctx context.Context) (kvstore.Txn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("duckkv: begin: %w", err)
	}
	return &txn{tx: tx, tableName: s.tableName}, nil
}

type txn struct {
	tx        *sql.Tx
	tableName string
}

func (t *txn) Range(ctx context.Context, begin, end []byte, _ bool) (kvstore.RangeIter, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if end == nil {
		query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 ORDER BY key", t.tableName)
		rows, err = t.tx.QueryContext(ctx, query, begin)
	} else {
		query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 AND key < $2 ORDER BY key", t.tableName)
		rows, err = t.tx.QueryContext(ctx, query, begin, end)
	}
	if err != nil {
		return nil, fmt.Errorf("duckkv: txn range: %w", err)
	}
	return &rowsIter{rows: rows}, nil
}

func (t *txn) Get(ctx context.Context, key []byte, _ bool) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", t.tableName)
	var value []byte
	err := t.tx.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("duckkv: txn get: %w", err)
	}
	return value, true, nil
}

func (t *txn) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("duckkv: commit: %w", err)
	}
	return nil
}

func (t *txn) Cancel(_ context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("duckkv: rollback: %w", err)
	}
	return nil
}

type rowsIter struct {
	rows *sql.Rows
	cur  kvstore.KV
	err  error
}

func (it *rowsIter) Next(_ context.Context) bool {
	if !it.rows.Next() {
		return false
	}
	var key, value []byte
	if err := it.rows.Scan(&key, &value); err != nil {
		it.err = fmt.Errorf("duckkv: scan: %w", err)
		return false
	}
	it.cur = kvstore.KV{Key: key, Value: value}
	return true
}

func (it *rowsIter) KV() kvstore.KV { return it.cur }
func (it *rowsIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}
func (it *rowsIter) Close() error { return it.rows.Close() }
