// Package sqlstoretest opens migrated, throwaway storage backends for tests.
package sqlstoretest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/nullprotocol/creditledger/internal/pkg/database"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

// PostgresURLEnv names the variable pointing tests at a PostgreSQL server.
const PostgresURLEnv = "LEDGER_TEST_DATABASE_URL"

// SQLite returns a migrated backend on a fresh file under t.TempDir().
func SQLite(t testing.TB) sqlstore.Backend {
	t.Helper()

	b, err := database.OpenBackend(context.Background(), database.Options{
		Engine:     sqlstore.EngineSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// Postgres returns a migrated backend isolated in its own schema. The test
// is skipped when no server is configured or reachable.
func Postgres(t testing.TB) sqlstore.Backend {
	t.Helper()

	base := os.Getenv(PostgresURLEnv)
	if base == "" {
		t.Skipf("%s not set, skipping postgres backend", PostgresURLEnv)
	}

	admin, err := sqlx.Connect("postgres", base)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer admin.Close()

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		db, err := sqlx.Connect("postgres", base)
		if err != nil {
			return
		}
		defer db.Close()
		db.Exec("DROP SCHEMA " + schema + " CASCADE")
	})

	dsn, err := withSearchPath(base, schema)
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := database.OpenBackend(ctx, database.Options{
		Engine:       sqlstore.EnginePostgres,
		DatabaseURL:  dsn,
		MaxOpenConns: 20,
	})
	if err != nil {
		t.Fatalf("open postgres backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// Each runs fn once per available engine as a subtest.
func Each(t *testing.T, fn func(t *testing.T, b sqlstore.Backend)) {
	t.Helper()

	t.Run(string(sqlstore.EngineSQLite), func(t *testing.T) {
		fn(t, SQLite(t))
	})
	t.Run(string(sqlstore.EnginePostgres), func(t *testing.T) {
		fn(t, Postgres(t))
	})
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("expected a postgres:// url, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
