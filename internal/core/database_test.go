// AngelaMos | 2026
// database_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, note TEXT NOT NULL)`)
	require.NoError(t, err)

	return db
}

func countEntries(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM entries`))
	return n
}

func TestInTx_Commits(t *testing.T) {
	db := newSQLite(t)

	err := InTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO entries (note) VALUES ('a'), ('b')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countEntries(t, db))
}

func TestInTx_RollsBackAndKeepsSentinel(t *testing.T) {
	db := newSQLite(t)

	err := InTx(context.Background(), db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO entries (note) VALUES ('a')`); err != nil {
			return err
		}
		return ErrInsufficientBalance
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ErrStoreFailure)
	assert.Zero(t, countEntries(t, db))
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	db := newSQLite(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = InTx(context.Background(), db, func(tx *sqlx.Tx) error {
			_, _ = tx.Exec(`INSERT INTO entries (note) VALUES ('a')`)
			panic("boom")
		})
	})
	assert.Zero(t, countEntries(t, db))
}

func TestInTx_BeginFailureIsStoreFailure(t *testing.T) {
	db := newSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := InTx(ctx, db, func(*sqlx.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrStoreFailure)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, called)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, EscapeLike(`50%_off\`))
	assert.False(t, IsDuplicateKey(errors.New("duplicate")))
}
