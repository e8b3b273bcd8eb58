// AngelaMos | 2026
// postgres.go

// Package coretest opens throwaway Postgres schemas for repository tests.
// Tests are skipped unless PAYROLL_TEST_DATABASE_URL holds a URL-form DSN.
package coretest

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/payroll-ledger/internal/config"
	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

const EnvDatabaseURL = "PAYROLL_TEST_DATABASE_URL"

// OpenDatabase migrates a fresh schema named after prefix and the running
// test, so packages tested in parallel never share rows. The schema is
// dropped when the test ends.
func OpenDatabase(t testing.TB, prefix string) *core.Database {
	t.Helper()

	base := os.Getenv(EnvDatabaseURL)
	if base == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := schemaName(prefix, t.Name())

	admin, err := sqlx.ConnectContext(ctx, "pgx", base)
	require.NoError(t, err)
	for _, stmt := range []string{
		"DROP SCHEMA IF EXISTS " + schema + " CASCADE",
		"CREATE SCHEMA " + schema,
	} {
		_, err = admin.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	dsn, err := url.Parse(base)
	require.NoError(t, err)
	q := dsn.Query()
	q.Set("search_path", schema)
	dsn.RawQuery = q.Encode()

	db, err := core.NewDatabase(ctx, config.DatabaseConfig{
		URL:          dsn.String(),
		MaxOpenConns: 8,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	t.Cleanup(func() {
		_ = db.Close()
		//nolint:errcheck // best-effort teardown
		_, _ = admin.ExecContext(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
		_ = admin.Close()
	})

	return db
}

func schemaName(prefix, testName string) string {
	var b strings.Builder
	b.WriteString("t_")
	for _, r := range strings.ToLower(prefix + "_" + testName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := b.String()
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
