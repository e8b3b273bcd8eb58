// AngelaMos | 2026
// repository_test.go

package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/core/coretest"
)

func openStore(t *testing.T) (Store, *sqlx.DB) {
	t.Helper()
	db := coretest.OpenDatabase(t, "ledger")

	for _, username := range []string{"root", "hr", "fin", "E1_user"} {
		_, err := db.DB.ExecContext(context.Background(), `
			INSERT INTO users (id, username, email, password_hash, role)
			VALUES ($1, $2, $3, 'x', 'admin')`,
			uuid.NewString(), username, username+"@example.com")
		require.NoError(t, err)
	}

	return NewStore(db.DB), db.DB
}

func seedEmployee(t *testing.T, store Store, empID string, salary int64) *Employee {
	t.Helper()
	e := &Employee{
		EmpID:          empID,
		Name:           "Ada " + empID,
		Position:       "Engineer",
		Salary:         salary,
		BankAccount:    []byte{0x01, 0x02},
		CurrentBalance: salary,
		CreatedBy:      "hr",
	}
	require.NoError(t, store.Create(context.Background(), e))
	return e
}

func appendTx(t *testing.T, store Store, empID string, kind Kind, amount int64, reason string) *Transaction {
	t.Helper()
	tx := &Transaction{EmpID: empID, Kind: kind, Amount: amount, Actor: "fin"}
	if reason != "" {
		tx.Reason = &reason
	}
	require.NoError(t, store.AppendTransaction(context.Background(), tx))
	return tx
}

func TestRepository_CreateAndGet(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	e := seedEmployee(t, store, "E1", 1000)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := store.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.CurrentBalance)
	assert.Equal(t, []byte{0x01, 0x02}, got.BankAccount)

	err = store.Create(ctx, &Employee{
		EmpID: "E1", Name: "Dup", Position: "X", Salary: 1,
		BankAccount: []byte{0}, CurrentBalance: 1, CreatedBy: "hr",
	})
	require.ErrorIs(t, err, core.ErrEmployeeExists)

	_, err = store.Get(ctx, "E9")
	require.ErrorIs(t, err, core.ErrEmployeeNotFound)
}

func TestRepository_TransactionsOrderAndKindFilter(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "E1", 1000)
	seedEmployee(t, store, "E2", 500)

	first := appendTx(t, store, "E1", KindDeduction, 200, "fine")
	second := appendTx(t, store, "E1", KindPayment, 1000, "")
	third := appendTx(t, store, "E1", KindDeduction, 50, "late")
	appendTx(t, store, "E2", KindDeduction, 10, "other")

	require.Less(t, first.ID, second.ID)
	require.Less(t, second.ID, third.ID)

	oldest, err := store.Transactions(ctx, "E1", TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, []int64{first.ID, second.ID, third.ID},
		[]int64{oldest[0].ID, oldest[1].ID, oldest[2].ID})
	assert.Nil(t, oldest[1].Reason)
	require.NotNil(t, oldest[0].Reason)
	assert.Equal(t, "fine", *oldest[0].Reason)

	newest, err := store.Transactions(ctx, "E1", TransactionFilter{NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, third.ID, newest[0].ID)
	assert.Equal(t, first.ID, newest[2].ID)

	deductions, err := store.Transactions(ctx, "E1", TransactionFilter{Kind: KindDeduction})
	require.NoError(t, err)
	require.Len(t, deductions, 2)
	for _, d := range deductions {
		assert.Equal(t, KindDeduction, d.Kind)
	}

	payments, err := store.Transactions(ctx, "E1", TransactionFilter{Kind: KindPayment, NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, second.ID, payments[0].ID)

	none, err := store.Transactions(ctx, "E9", TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_SchemaRejectsInvalidRows(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	e := seedEmployee(t, store, "E1", 1000)

	tests := []struct {
		name string
		run  func() error
	}{
		{"balance above salary", func() error {
			over := *e
			over.CurrentBalance = 1001
			return store.UpdateBalance(ctx, &over)
		}},
		{"negative balance", func() error {
			under := *e
			under.CurrentBalance = -1
			return store.UpdateBalance(ctx, &under)
		}},
		{"unknown kind", func() error {
			return store.AppendTransaction(ctx, &Transaction{EmpID: "E1", Kind: "bonus", Amount: 1, Actor: "fin"})
		}},
		{"zero amount", func() error {
			return store.AppendTransaction(ctx, &Transaction{EmpID: "E1", Kind: KindPayment, Amount: 0, Actor: "fin"})
		}},
		{"reason on payment", func() error {
			reason := "bonus"
			return store.AppendTransaction(ctx, &Transaction{EmpID: "E1", Kind: KindPayment, Amount: 1, Reason: &reason, Actor: "fin"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.ErrorIs(t, err, core.ErrStoreFailure)
		})
	}

	got, err := store.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.CurrentBalance)
}

func TestRepository_GetForUpdateWaitsForHolder(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "E1", 1000)

	locked := make(chan struct{})
	var (
		wg       sync.WaitGroup
		seen     int64
		innerErr error
	)

	err := store.Atomically(ctx, func(repo Repository) error {
		e, err := repo.GetForUpdate(ctx, "E1")
		if err != nil {
			return err
		}
		close(locked)

		wg.Add(1)
		go func() {
			defer wg.Done()
			innerErr = store.Atomically(ctx, func(repo Repository) error {
				other, err := repo.GetForUpdate(ctx, "E1")
				if err != nil {
					return err
				}
				seen = other.CurrentBalance
				return nil
			})
		}()

		time.Sleep(150 * time.Millisecond)
		require.NoError(t, e.Deduct(300))
		return repo.UpdateBalance(ctx, e)
	})
	require.NoError(t, err)
	<-locked
	wg.Wait()

	require.NoError(t, innerErr)
	assert.Equal(t, int64(700), seen)
}

func TestRepository_ListAndSummary(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	seedEmployee(t, store, "E1", 1000)
	seedEmployee(t, store, "E2", 500)
	appendTx(t, store, "E1", KindDeduction, 100, "fine")

	e, err := store.Get(ctx, "E1")
	require.NoError(t, err)
	require.NoError(t, e.Deduct(100))
	require.NoError(t, store.UpdateBalance(ctx, e))

	all, total, err := store.List(ctx, ListEmployeesParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, "E1", all[0].EmpID)

	found, total, err := store.List(ctx, ListEmployeesParams{Page: 1, PageSize: 10, Search: "ada e2"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "E2", found[0].EmpID)

	_, total, err = store.List(ctx, ListEmployeesParams{Page: 1, PageSize: 10, Search: "%"})
	require.NoError(t, err)
	assert.Zero(t, total)

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Employees:       2,
		TotalSalary:     1500,
		TotalBalance:    1400,
		TotalDeductions: 100,
		Transactions:    1,
	}, summary)
}

func TestService_ScenarioAgainstPostgres(t *testing.T) {
	store, _ := openStore(t)
	f := newFixture(t)
	svc := NewService(
		store,
		f.codec,
		f.notifier,
		directory{"E1_user": "e1@example.com"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	ctx := context.Background()

	_, err := svc.AddEmployee(ctx, hr, AddEmployeeRequest{
		EmpID: "E1", Name: "Ada", Position: "Engineer",
		Salary: 1000, BankAccount: "DE89370400440532013000",
	})
	require.NoError(t, err)

	_, err = svc.Deduct(ctx, finance, "E1", 200, "fine")
	require.NoError(t, err)
	_, err = svc.Deduct(ctx, finance, "E1", 900, "too much")
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	_, err = svc.Pay(ctx, finance, "E1")
	require.NoError(t, err)

	rec, err := svc.GetEmployee(ctx, e1User, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.Employee.CurrentBalance)
	assert.Equal(t, "DE89370400440532013000", rec.BankAccount)
	require.Len(t, rec.Transactions, 2)
	assert.Equal(t, KindPayment, rec.Transactions[0].Kind)
	assert.Equal(t, KindDeduction, rec.Transactions[1].Kind)
	assert.Equal(t, int64(200), rec.Transactions[1].Amount)
}

func TestService_ConcurrentDeductionsAgainstPostgres(t *testing.T) {
	store, _ := openStore(t)
	f := newFixture(t)
	svc := NewService(store, f.codec, f.notifier, directory{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, err := svc.AddEmployee(ctx, hr, AddEmployeeRequest{
		EmpID: "E1", Name: "Ada", Position: "Engineer",
		Salary: 1000, BankAccount: "DE89",
	})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Deduct(ctx, finance, "E1", 100, "batch"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, core.ErrInsufficientBalance)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	e, err := store.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Zero(t, e.CurrentBalance)
	assert.Equal(t, int64(1000), e.TotalDeductions)

	txs, err := store.Transactions(ctx, "E1", TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 10)
}
