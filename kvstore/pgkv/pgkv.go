// Package pgkv backs kvstore.Store with a PostgreSQL table of
// (key bytea PRIMARY KEY, value bytea), range-scanning in key order.
// Grounded on the teacher's pgx.v5/pgxpool querying idiom
// (internal/postgres_persistent_repository_query.go).
package pgkv

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/brindledata/recordquery/kvstore"
)

// Pool is the subset of *pgxpool.Pool this package needs, so tests can
// inject pgxmock.PgxPoolIface in its place.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store backs kvstore.Store with Postgres.
type Store struct {
	pool      Pool
	tableName string
}

// New returns a Store querying the named table, which must have columns
// (key bytea PRIMARY KEY, value bytea).
func New(pool Pool, tableName string) *Store {
	return &Store{pool: pool, tableName: tableName}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Get(ctx context.Context, key []byte, _ bool) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.tableName)
	var value []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgkv: get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Range(ctx context.Context, begin, end []byte, _ bool) (kvstore.RangeIter, error) {
	query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 AND key < $2 ORDER BY key", s.tableName)
	rows, err := s.pool.Query(ctx, query, begin, end)
	if err != nil {
		return nil, fmt.Errorf("pgkv: range: %w", err)
	}
	return &rowsIter{rows: rows}, nil
}

func (s *Store) Begin(ctx context.Context) (kvstore.Txn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgkv: begin: %w", err)
	}
	return &txn{tx: tx, tableName: s.tableName}, nil
}

type txn struct {
	tx        pgx.Tx
	tableName string
}

func (t *txn) Range(ctx context.Context, begin, end []byte, _ bool) (kvstore.RangeIter, error) {
	query := fmt.Sprintf("SELECT key, value FROM %s WHERE key >= $1 AND key < $2 ORDER BY key", t.tableName)
	rows, err := t.tx.Query(ctx, query, begin, end)
	if err != nil {
		return nil, fmt.Errorf("pgkv: txn range: %w", err)
	}
	return &rowsIter{rows: rows}, nil
}

func (t *txn) Get(ctx context.Context, key []byte, _ bool) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", t.tableName)
	var value []byte
	err := t.tx.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgkv: txn get: %w", err)
	}
	return value, true, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgkv: commit: %w", err)
	}
	return nil
}

func (t *txn) Cancel(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		zap.S().Warnw("pgkv: rollback failed", "error", err)
		return fmt.Errorf("pgkv: rollback: %w", err)
	}
	return nil
}

type rowsIter struct {
	rows pgx.Rows
	cur  kvstore.KV
	err  error
}

func (it *rowsIter) Next(_ context.Context) bool {
	if !it.rows.Next() {
		return false
	}
	var key, value []byte
	if err := it.rows.Scan(&key, &value); err != nil {
		it.err = fmt.Errorf("pgkv: scan: %w", err)
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
func (it *rowsIter) Close() error {
	it.rows.Close()
	return nil
}
