// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

type Repository interface {
	Create(ctx context.Context, e *Employee) error
	Get(ctx context.Context, empID string) (*Employee, error)
	// GetForUpdate locks the employee row until the surrounding transaction
	// ends, serializing every mutation of that employee.
	GetForUpdate(ctx context.Context, empID string) (*Employee, error)
	UpdateBalance(ctx context.Context, e *Employee) error
	AppendTransaction(ctx context.Context, t *Transaction) error
	List(ctx context.Context, params ListEmployeesParams) ([]Employee, int, error)
	Transactions(
		ctx context.Context,
		empID string,
		filter TransactionFilter,
	) ([]Transaction, error)
	Summary(ctx context.Context) (Summary, error)
}

type Store interface {
	Repository
	Atomically(ctx context.Context, fn func(repo Repository) error) error
}

const employeeColumns = `
	emp_id, name, position, salary, bank_account, current_balance,
	total_deductions, created_by, created_at, updated_at`

type repository struct {
	db core.DBTX
}

type store struct {
	repository
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &store{repository: repository{db: db}, db: db}
}

func (s *store) Atomically(
	ctx context.Context,
	fn func(repo Repository) error,
) error {
	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) Create(ctx context.Context, e *Employee) error {
	query := `
		INSERT INTO employees (
			emp_id, name, position, salary, bank_account,
			current_balance, total_deductions, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		e.EmpID,
		e.Name,
		e.Position,
		e.Salary,
		e.BankAccount,
		e.CurrentBalance,
		e.TotalDeductions,
		e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create employee %s: %w", e.EmpID, core.ErrEmployeeExists)
		}
		return core.StoreError("create employee", err)
	}

	return nil
}

func (r *repository) getOne(
	ctx context.Context,
	op, suffix, empID string,
) (*Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE emp_id = $1` + suffix

	var e Employee
	err := r.db.GetContext(ctx, &e, query, empID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", op, empID, core.ErrEmployeeNotFound)
	}
	if err != nil {
		return nil, core.StoreError(op, err)
	}

	return &e, nil
}

func (r *repository) Get(ctx context.Context, empID string) (*Employee, error) {
	return r.getOne(ctx, "get employee", "", empID)
}

func (r *repository) GetForUpdate(
	ctx context.Context,
	empID string,
) (*Employee, error) {
	return r.getOne(ctx, "lock employee", " FOR UPDATE", empID)
}

func (r *repository) UpdateBalance(ctx context.Context, e *Employee) error {
	query := `
		UPDATE employees
		SET current_balance = $2, total_deductions = $3, updated_at = NOW()
		WHERE emp_id = $1
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		e.EmpID,
		e.CurrentBalance,
		e.TotalDeductions,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update balance %s: %w", e.EmpID, core.ErrEmployeeNotFound)
	}
	if err != nil {
		return core.StoreError("update balance", err)
	}

	return nil
}

func (r *repository) AppendTransaction(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions (emp_id, kind, amount, reason, actor)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		t.EmpID,
		t.Kind,
		t.Amount,
		t.Reason,
		t.Actor,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return core.StoreError("append transaction", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListEmployeesParams,
) ([]Employee, int, error) {
	params.Normalize()

	where := "TRUE"
	var args []any
	if params.Search != "" {
		where = "(emp_id ILIKE $1 OR name ILIKE $1 OR position ILIKE $1)"
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM employees WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, core.StoreError("count employees", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM employees
		WHERE %s
		ORDER BY emp_id
		LIMIT $%d OFFSET $%d`,
		employeeColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())

	var employees []Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, core.StoreError("list employees", err)
	}

	return employees, total, nil
}

// Transactions orders by the serial id, which follows commit order for a
// given employee because mutations hold the employee row lock.
func (r *repository) Transactions(
	ctx context.Context,
	empID string,
	filter TransactionFilter,
) ([]Transaction, error) {
	query := `
		SELECT id, emp_id, kind, amount, reason, actor, created_at
		FROM transactions
		WHERE emp_id = $1 AND ($2::text = '' OR kind = $2::text)
		ORDER BY id`
	if filter.NewestFirst {
		query += " DESC"
	}

	txs := []Transaction{}
	if err := r.db.SelectContext(ctx, &txs, query, empID, string(filter.Kind)); err != nil {
		return nil, core.StoreError("list transactions", err)
	}

	return txs, nil
}

func (r *repository) Summary(ctx context.Context) (Summary, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM employees)                           AS employees,
			(SELECT COALESCE(SUM(salary), 0)::bigint FROM employees)           AS total_salary,
			(SELECT COALESCE(SUM(current_balance), 0)::bigint FROM employees)  AS total_balance,
			(SELECT COALESCE(SUM(total_deductions), 0)::bigint FROM employees) AS total_deductions,
			(SELECT COUNT(*) FROM transactions)                        AS transactions`

	var s Summary
	if err := r.db.GetContext(ctx, &s, query); err != nil {
		return Summary{}, core.StoreError("ledger summary", err)
	}

	return s, nil
}
