// Package testutil provides shared test infrastructure: a mock LLM and
// embedder for deterministic agent tests, and a disposable PostgreSQL
// container with pgvector for storage integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rowanjacobson/rag-chatbot-enhanced/db"
)

// TestDBContainer wraps a PostgreSQL test container with a ready connection
// pool. The database has the pgvector extension installed and all migrations
// applied.
type TestDBContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a disposable PostgreSQL container for one test. Skips
// the test when Docker is unavailable (RAGCHAT_SKIP_DOCKER_TESTS=1).
//
// The returned cleanup function must be called to terminate the container:
//
//	tdb, cleanup := testutil.SetupTestDB(t)
//	defer cleanup()
func SetupTestDB(t *testing.T) (*TestDBContainer, func()) {
	t.Helper()

	if os.Getenv("RAGCHAT_SKIP_DOCKER_TESTS") == "1" {
		t.Skip("RAGCHAT_SKIP_DOCKER_TESTS=1 - skipping container-backed test")
	}

	ctx := context.Background()

	pgContainer, err := startPostgres(ctx)
	if err != nil {
		t.Skipf("starting PostgreSQL container (is Docker running?): %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("getting connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("creating connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("pinging database: %v", err)
	}

	if err := db.Migrate(connStr, DiscardLogger()); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("running migrations: %v", err)
	}

	container := &TestDBContainer{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(context.Background())
	}

	return container, cleanup
}

// startPostgres launches the pgvector container. testcontainers-go panics
// during Docker host detection when no Docker endpoint is configured, before
// Run can return an error; the recover converts that into an error so callers
// can skip instead of crashing the test binary.
func startPostgres(ctx context.Context) (c *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("docker endpoint unavailable: %v", r)
		}
	}()

	return postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("ragchat_test"),
		postgres.WithUsername("ragchat_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
}

// FindProjectRoot walks up from this file's directory until it finds go.mod.
// Tests in any subdirectory can use it to locate repo-level fixtures.
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("getting current file path")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod)")
		}
		dir = parent
	}
}
