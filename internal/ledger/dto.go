// AngelaMos | 2026
// dto.go

package ledger

import (
	"time"
)

type AddEmployeeRequest struct {
	EmpID       string `json:"emp_id"       validate:"required,alphanum,max=32"`
	Name        string `json:"name"         validate:"required,max=200"`
	Position    string `json:"position"     validate:"required,max=200"`
	Salary      int64  `json:"salary"       validate:"required,gt=0"`
	BankAccount string `json:"bank_account" validate:"required,max=64"`
}

type DeductRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type ListEmployeesParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
}

func (p *ListEmployeesParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListEmployeesParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TransactionFilter narrows a history query. A zero Kind matches both.
type TransactionFilter struct {
	Kind        Kind
	NewestFirst bool
}

// Record is an employee as returned to an authorized viewer: bank account
// decrypted and history newest first.
type Record struct {
	Employee     Employee
	BankAccount  string
	Transactions []Transaction
}

// Posting is the outcome of a ledger mutation.
type Posting struct {
	Employee    Employee
	Transaction Transaction
}

type EmployeeResponse struct {
	EmpID           string    `json:"emp_id"`
	Name            string    `json:"name"`
	Position        string    `json:"position"`
	Salary          int64     `json:"salary"`
	CurrentBalance  int64     `json:"current_balance"`
	TotalDeductions int64     `json:"total_deductions"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type TransactionResponse struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

type RecordResponse struct {
	EmployeeResponse
	BankAccount  string                `json:"bank_account"`
	Transactions []TransactionResponse `json:"transactions"`
}

type PostingResponse struct {
	Employee    EmployeeResponse    `json:"employee"`
	Transaction TransactionResponse `json:"transaction"`
}

func ToEmployeeResponse(e *Employee) EmployeeResponse {
	return EmployeeResponse{
		EmpID:           e.EmpID,
		Name:            e.Name,
		Position:        e.Position,
		Salary:          e.Salary,
		CurrentBalance:  e.CurrentBalance,
		TotalDeductions: e.TotalDeductions,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
	}
}

func ToEmployeeResponseList(employees []Employee) []EmployeeResponse {
	out := make([]EmployeeResponse, 0, len(employees))
	for i := range employees {
		out = append(out, ToEmployeeResponse(&employees[i]))
	}
	return out
}

func ToTransactionResponse(t *Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        t.ID,
		Kind:      t.Kind,
		Amount:    t.Amount,
		Actor:     t.Actor,
		CreatedAt: t.CreatedAt,
	}
	if t.Reason != nil {
		resp.Reason = *t.Reason
	}
	return resp
}

func ToTransactionResponseList(txs []Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, ToTransactionResponse(&txs[i]))
	}
	return out
}

func ToRecordResponse(r *Record) RecordResponse {
	return RecordResponse{
		EmployeeResponse: ToEmployeeResponse(&r.Employee),
		BankAccount:      r.BankAccount,
		Transactions:     ToTransactionResponseList(r.Transactions),
	}
}

func ToPostingResponse(p *Posting) PostingResponse {
	return PostingResponse{
		Employee:    ToEmployeeResponse(&p.Employee),
		Transaction: ToTransactionResponse(&p.Transaction),
	}
}
