// AngelaMos | 2026
// entity.go

package ledger

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

type Kind string

const (
	KindDeduction Kind = "deduction"
	KindPayment   Kind = "payment"
)

func (k Kind) Valid() bool {
	return k == KindDeduction || k == KindPayment
}

// Employee amounts are in cents. BankAccount holds ciphertext only.
type Employee struct {
	EmpID           string    `db:"emp_id"`
	Name            string    `db:"name"`
	Position        string    `db:"position"`
	Salary          int64     `db:"salary"`
	BankAccount     []byte    `db:"bank_account"`
	CurrentBalance  int64     `db:"current_balance"`
	TotalDeductions int64     `db:"total_deductions"`
	CreatedBy       string    `db:"created_by"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Deduct takes amount out of the current balance. The employee is left
// untouched when the balance cannot cover it.
func (e *Employee) Deduct(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deduction must be positive: %w", core.ErrInvalidInput)
	}
	if amount > e.CurrentBalance {
		return fmt.Errorf(
			"deduct %d from %d: %w",
			amount,
			e.CurrentBalance,
			core.ErrInsufficientBalance,
		)
	}

	e.CurrentBalance -= amount
	e.TotalDeductions += amount
	return nil
}

// Pay restores the full salary and returns the amount paid.
func (e *Employee) Pay() int64 {
	e.CurrentBalance = e.Salary
	e.TotalDeductions = 0
	return e.Salary
}

// OwnerUsername is the login name of the employee's own account.
func OwnerUsername(empID string) string {
	return empID + "_user"
}

// Transaction is an immutable audit entry. Reason is set on deductions only.
type Transaction struct {
	ID        int64     `db:"id"`
	EmpID     string    `db:"emp_id"`
	Kind      Kind      `db:"kind"`
	Amount    int64     `db:"amount"`
	Reason    *string   `db:"reason"`
	Actor     string    `db:"actor"`
	CreatedAt time.Time `db:"created_at"`
}

// Summary aggregates the whole ledger.
type Summary struct {
	Employees       int   `db:"employees"        json:"employees"`
	TotalSalary     int64 `db:"total_salary"     json:"total_salary"`
	TotalBalance    int64 `db:"total_balance"    json:"total_balance"`
	TotalDeductions int64 `db:"total_deductions" json:"total_deductions"`
	Transactions    int   `db:"transactions"     json:"transactions"`
}
