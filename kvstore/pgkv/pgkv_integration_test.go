//go:build integration

package pgkv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStore_RangeScan_RealPostgres exercises range-scan ordering against a
// real Postgres instance, the way the teacher's integration suite spins a
// postgres:16 container for its own repository tests.
func TestStore_RangeScan_RealPostgres(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "recordquery",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/recordquery?sslmode=disable", host, mapped.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `CREATE TABLE kv (key bytea PRIMARY KEY, value bytea)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO kv (key, value) VALUES ($1, $2), ($3, $4), ($5, $6)`,
		[]byte("a"), []byte("1"), []byte("b"), []byte("2"), []byte("c"), []byte("3"))
	require.NoError(t, err)

	store := New(pool, "kv")
	iter, err := store.Range(ctx, []byte("a"), []byte("c"), false)
	require.NoError(t, err)
	defer iter.Close()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, string(iter.KV().Key))
	}
	require.NoError(t, iter.Err())
	require.Equal(t, []string{"a", "b"}, keys)
}
