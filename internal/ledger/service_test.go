// AngelaMos | 2026
// service_test.go

package ledger

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/notify"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

type memoryStore struct {
	mu        sync.Mutex
	employees map[string]*Employee
	txs       []Transaction
	nextID    int64
	failNext  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{employees: make(map[string]*Employee)}
}

type memoryRepo struct {
	s *memoryStore
}

func (m *memoryStore) Atomically(_ context.Context, fn func(repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	employees := make(map[string]Employee, len(m.employees))
	for id, e := range m.employees {
		employees[id] = *e
	}
	txCount, nextID := len(m.txs), m.nextID

	if err := fn(memoryRepo{s: m}); err != nil {
		m.employees = make(map[string]*Employee, len(employees))
		for id, e := range employees {
			m.employees[id] = &e
		}
		m.txs, m.nextID = m.txs[:txCount], nextID
		return err
	}
	return nil
}

func (m *memoryStore) locked(fn func(r memoryRepo) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(memoryRepo{s: m})
}

func (m *memoryStore) Create(ctx context.Context, e *Employee) error {
	return m.locked(func(r memoryRepo) error { return r.Create(ctx, e) })
}

func (m *memoryStore) Get(ctx context.Context, id string) (e *Employee, err error) {
	err = m.locked(func(r memoryRepo) error { e, err = r.Get(ctx, id); return err })
	return e, err
}

func (m *memoryStore) GetForUpdate(ctx context.Context, id string) (*Employee, error) {
	return m.Get(ctx, id)
}

func (m *memoryStore) UpdateBalance(ctx context.Context, e *Employee) error {
	return m.locked(func(r memoryRepo) error { return r.UpdateBalance(ctx, e) })
}

func (m *memoryStore) AppendTransaction(ctx context.Context, t *Transaction) error {
	return m.locked(func(r memoryRepo) error { return r.AppendTransaction(ctx, t) })
}

func (m *memoryStore) List(ctx context.Context, p ListEmployeesParams) (out []Employee, n int, err error) {
	err = m.locked(func(r memoryRepo) error { out, n, err = r.List(ctx, p); return err })
	return out, n, err
}

func (m *memoryStore) Transactions(ctx context.Context, id string, f TransactionFilter) (out []Transaction, err error) {
	err = m.locked(func(r memoryRepo) error { out, err = r.Transactions(ctx, id, f); return err })
	return out, err
}

func (m *memoryStore) Summary(ctx context.Context) (s Summary, err error) {
	err = m.locked(func(r memoryRepo) error { s, err = r.Summary(ctx); return err })
	return s, err
}

func (r memoryRepo) Create(_ context.Context, e *Employee) error {
	if _, ok := r.s.employees[e.EmpID]; ok {
		return core.ErrEmployeeExists
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.s.employees[e.EmpID] = &cp
	return nil
}

func (r memoryRepo) Get(_ context.Context, id string) (*Employee, error) {
	e, ok := r.s.employees[id]
	if !ok {
		return nil, core.ErrEmployeeNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memoryRepo) GetForUpdate(ctx context.Context, id string) (*Employee, error) {
	return r.Get(ctx, id)
}

func (r memoryRepo) UpdateBalance(_ context.Context, e *Employee) error {
	if r.s.failNext != nil {
		err := r.s.failNext
		r.s.failNext = nil
		return err
	}
	stored, ok := r.s.employees[e.EmpID]
	if !ok {
		return core.ErrEmployeeNotFound
	}
	stored.CurrentBalance = e.CurrentBalance
	stored.TotalDeductions = e.TotalDeductions
	return nil
}

func (r memoryRepo) AppendTransaction(_ context.Context, t *Transaction) error {
	r.s.nextID++
	t.ID = r.s.nextID
	t.CreatedAt = time.Now()
	r.s.txs = append(r.s.txs, *t)
	return nil
}

func (r memoryRepo) List(_ context.Context, p ListEmployeesParams) ([]Employee, int, error) {
	p.Normalize()
	var out []Employee
	for _, e := range r.s.employees {
		if p.Search == "" || strings.Contains(e.Name, p.Search) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmpID < out[j].EmpID })
	return out, len(out), nil
}

func (r memoryRepo) Transactions(_ context.Context, id string, f TransactionFilter) ([]Transaction, error) {
	out := []Transaction{}
	for _, t := range r.s.txs {
		if t.EmpID == id && (f.Kind == "" || t.Kind == f.Kind) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.NewestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memoryRepo) Summary(_ context.Context) (Summary, error) {
	var s Summary
	for _, e := range r.s.employees {
		s.Employees++
		s.TotalSalary += e.Salary
		s.TotalBalance += e.CurrentBalance
		s.TotalDeductions += e.TotalDeductions
	}
	s.Transactions = len(r.s.txs)
	return s, nil
}

type directory map[string]string

func (d directory) EmailFor(_ context.Context, username string) (string, error) {
	email, ok := d[username]
	if !ok {
		return "", core.ErrUserNotFound
	}
	return email, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

var (
	admin   = &session.Session{Username: "root", Role: policy.RoleAdmin}
	hr      = &session.Session{Username: "hr", Role: policy.RoleHRManager}
	finance = &session.Session{Username: "fin", Role: policy.RoleFinanceManager}
	deptMgr = &session.Session{Username: "dept", Role: policy.RoleDepartmentManager}
	e1User  = &session.Session{Username: "E1_user", Role: policy.RoleEmployee}
	e2User  = &session.Session{Username: "E2_user", Role: policy.RoleEmployee}
)

type fixture struct {
	svc      *Service
	store    *memoryStore
	codec    *core.FieldCodec
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	codec, err := core.NewFieldCodecFromBase64(key)
	require.NoError(t, err)

	f := &fixture{
		store:    newMemoryStore(),
		codec:    codec,
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(
		f.store,
		codec,
		f.notifier,
		directory{"E1_user": "e1@example.com"},
		logger,
	)
	return f
}

func (f *fixture) addE1(t *testing.T) {
	t.Helper()
	_, err := f.svc.AddEmployee(context.Background(), hr, AddEmployeeRequest{
		EmpID:       "E1",
		Name:        "Ada",
		Position:    "Engineer",
		Salary:      1000,
		BankAccount: "DE89370400440532013000",
	})
	require.NoError(t, err)
}

func TestScenario_DeductRejectPay(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	posting, err := f.svc.Deduct(ctx, finance, "E1", 200, "fine")
	require.NoError(t, err)
	assert.Equal(t, int64(800), posting.Employee.CurrentBalance)
	assert.Equal(t, int64(200), posting.Employee.TotalDeductions)

	history, err := f.svc.History(ctx, finance, "E1", "")
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = f.svc.Deduct(ctx, finance, "E1", 900, "too much")
	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	rec, err := f.svc.GetEmployee(ctx, finance, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), rec.Employee.CurrentBalance)
	assert.Equal(t, int64(200), rec.Employee.TotalDeductions)

	posting, err = f.svc.Pay(ctx, finance, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), posting.Employee.CurrentBalance)
	assert.Zero(t, posting.Employee.TotalDeductions)
	assert.Equal(t, int64(1000), posting.Transaction.Amount)

	history, err = f.svc.History(ctx, finance, "E1", "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, KindDeduction, history[0].Kind)
	assert.Equal(t, int64(200), history[0].Amount)
	require.NotNil(t, history[0].Reason)
	assert.Equal(t, "fine", *history[0].Reason)
	assert.Equal(t, KindPayment, history[1].Kind)
	assert.Equal(t, int64(1000), history[1].Amount)
	assert.Nil(t, history[1].Reason)

	rec, err = f.svc.GetEmployee(ctx, finance, "E1")
	require.NoError(t, err)
	require.Len(t, rec.Transactions, 2)
	assert.Equal(t, KindPayment, rec.Transactions[0].Kind)
	assert.Equal(t, KindDeduction, rec.Transactions[1].Kind)
}

func TestAddEmployee(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	emp, err := f.store.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), emp.CurrentBalance)
	assert.Zero(t, emp.TotalDeductions)
	assert.Equal(t, "hr", emp.CreatedBy)
	assert.NotContains(t, string(emp.BankAccount), "DE8937")

	_, err = f.svc.AddEmployee(ctx, hr, AddEmployeeRequest{EmpID: "E1", Name: "x", Position: "y", Salary: 1, BankAccount: "z"})
	require.ErrorIs(t, err, core.ErrEmployeeExists)

	_, err = f.svc.AddEmployee(ctx, finance, AddEmployeeRequest{EmpID: "E2", Name: "x", Position: "y", Salary: 1, BankAccount: "z"})
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = f.svc.AddEmployee(ctx, nil, AddEmployeeRequest{EmpID: "E2", Name: "x", Position: "y", Salary: 1, BankAccount: "z"})
	require.ErrorIs(t, err, core.ErrUnauthenticated)

	_, err = f.svc.AddEmployee(ctx, hr, AddEmployeeRequest{EmpID: "E2", Name: "x", Position: "y", Salary: 0, BankAccount: "z"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "e1@example.com", f.notifier.sent[0].To)
	assert.Equal(t, "E1", f.notifier.sent[0].Key)
}

func TestMutations_RequireManageFinance(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	for _, actor := range []*session.Session{deptMgr, e1User} {
		_, err := f.svc.Deduct(ctx, actor, "E1", 10, "x")
		require.ErrorIs(t, err, core.ErrPermissionDenied)
		_, err = f.svc.Pay(ctx, actor, "E1")
		require.ErrorIs(t, err, core.ErrPermissionDenied)
	}

	_, err := f.svc.Deduct(ctx, nil, "E1", 10, "x")
	require.ErrorIs(t, err, core.ErrUnauthenticated)

	_, err = f.svc.Deduct(ctx, finance, "E404", 10, "x")
	require.ErrorIs(t, err, core.ErrEmployeeNotFound)
	_, err = f.svc.Pay(ctx, finance, "E404")
	require.ErrorIs(t, err, core.ErrEmployeeNotFound)

	_, err = f.svc.Deduct(ctx, finance, "E1", 0, "x")
	require.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = f.svc.Deduct(ctx, finance, "E1", -5, "x")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	rec, err := f.svc.GetEmployee(ctx, admin, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.Employee.CurrentBalance)
	assert.Empty(t, rec.Transactions)
}

func TestPay_AppendsEveryCall(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		posting, err := f.svc.Pay(ctx, finance, "E1")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), posting.Employee.CurrentBalance)
	}

	history, err := f.svc.History(ctx, finance, "E1", KindPayment)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestGetEmployee_Visibility(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	rec, err := f.svc.GetEmployee(ctx, e1User, "E1")
	require.NoError(t, err)
	assert.Equal(t, "DE89370400440532013000", rec.BankAccount)

	_, err = f.svc.GetEmployee(ctx, e2User, "E1")
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = f.svc.GetEmployee(ctx, nil, "E1")
	require.ErrorIs(t, err, core.ErrUnauthenticated)

	for _, viewer := range []*session.Session{admin, hr, finance, deptMgr} {
		_, err := f.svc.GetEmployee(ctx, viewer, "E1")
		require.NoError(t, err, viewer.Role)
	}

	_, err = f.svc.GetEmployee(ctx, admin, "E9")
	require.ErrorIs(t, err, core.ErrEmployeeNotFound)
}

func TestGetEmployee_TamperedBankAccountFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)

	f.store.mu.Lock()
	f.store.employees["E1"].BankAccount[len(f.store.employees["E1"].BankAccount)-1] ^= 0x01
	f.store.mu.Unlock()

	rec, err := f.svc.GetEmployee(context.Background(), admin, "E1")
	require.ErrorIs(t, err, core.ErrDecryptionFailed)
	assert.Nil(t, rec)
}

func TestNotifierFailureDoesNotRevert(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	f.notifier.err = errors.New("smtp down")

	posting, err := f.svc.Deduct(context.Background(), finance, "E1", 300, "advance")
	require.NoError(t, err)
	assert.Equal(t, int64(700), posting.Employee.CurrentBalance)

	emp, err := f.store.Get(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), emp.CurrentBalance)
}

func TestStoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	f.store.failNext = core.StoreError("update balance", errors.New("connection reset"))

	_, err := f.svc.Deduct(context.Background(), finance, "E1", 100, "x")
	require.ErrorIs(t, err, core.ErrStoreFailure)

	history, err := f.svc.History(context.Background(), finance, "E1", "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConcurrentMutationsKeepInvariant(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		deducted   int
		rejections int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 9 {
				_, err := f.svc.Pay(ctx, finance, "E1")
				assert.NoError(t, err)
				return
			}
			_, err := f.svc.Deduct(ctx, finance, "E1", 150, "batch")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				deducted++
			case errors.Is(err, core.ErrInsufficientBalance):
				rejections++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	emp, err := f.store.Get(ctx, "E1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, emp.CurrentBalance, int64(0))
	assert.LessOrEqual(t, emp.CurrentBalance, emp.Salary)
	assert.Equal(t, 45, deducted+rejections)

	history, err := f.svc.History(ctx, finance, "E1", "")
	require.NoError(t, err)
	assert.Len(t, history, deducted+5)

	// Replaying the log must land on the stored balance.
	balance, total := emp.Salary, int64(0)
	for _, tx := range history {
		switch tx.Kind {
		case KindDeduction:
			balance -= tx.Amount
			total += tx.Amount
		case KindPayment:
			balance, total = tx.Amount, 0
		}
		require.GreaterOrEqual(t, balance, int64(0))
	}
	assert.Equal(t, emp.CurrentBalance, balance)
	assert.Equal(t, emp.TotalDeductions, total)
}

func TestHistoryAndList(t *testing.T) {
	f := newFixture(t)
	f.addE1(t)
	ctx := context.Background()

	_, err := f.svc.History(ctx, e1User, "E1", "")
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = f.svc.History(ctx, finance, "E1", Kind("bonus"))
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.History(ctx, finance, "E404", "")
	require.ErrorIs(t, err, core.ErrEmployeeNotFound)

	employees, total, err := f.svc.ListEmployees(ctx, deptMgr, ListEmployeesParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "E1", employees[0].EmpID)

	_, _, err = f.svc.ListEmployees(ctx, e1User, ListEmployeesParams{})
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	summary, err := f.svc.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Employees)
	assert.Equal(t, int64(1000), summary.TotalSalary)
}

func TestEmployee_DeductLeavesBalanceOnFailure(t *testing.T) {
	e := &Employee{Salary: 1000, CurrentBalance: 800, TotalDeductions: 200}

	err := e.Deduct(900)
	require.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Equal(t, int64(800), e.CurrentBalance)
	assert.Equal(t, int64(200), e.TotalDeductions)

	require.NoError(t, e.Deduct(800))
	assert.Zero(t, e.CurrentBalance)

	assert.Equal(t, int64(1000), e.Pay())
	assert.Equal(t, int64(1000), e.CurrentBalance)
	assert.Zero(t, e.TotalDeductions)
}
