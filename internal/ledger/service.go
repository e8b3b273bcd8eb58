// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
	"github.com/carterperez-dev/payroll-ledger/internal/metrics"
	"github.com/carterperez-dev/payroll-ledger/internal/notify"
	"github.com/carterperez-dev/payroll-ledger/internal/policy"
	"github.com/carterperez-dev/payroll-ledger/internal/session"
)

// FieldCipher seals and opens sensitive columns.
type FieldCipher interface {
	EncryptString(plaintext string) ([]byte, error)
	DecryptString(sealed []byte) (string, error)
}

// RecipientDirectory resolves a username to a mailbox.
type RecipientDirectory interface {
	EmailFor(ctx context.Context, username string) (string, error)
}

type Service struct {
	store     Store
	cipher    FieldCipher
	notifier  notify.Notifier
	directory RecipientDirectory
	logger    *slog.Logger
}

func NewService(
	store Store,
	cipher FieldCipher,
	notifier notify.Notifier,
	directory RecipientDirectory,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		cipher:    cipher,
		notifier:  notifier,
		directory: directory,
		logger:    logger,
	}
}

func (s *Service) AddEmployee(
	ctx context.Context,
	actor *session.Session,
	req AddEmployeeRequest,
) (_ *Employee, err error) {
	ctx, span := core.StartSpan(ctx, "ledger.AddEmployee",
		attribute.String("emp_id", req.EmpID))
	defer func() { s.finish(span, "add_employee", err) }()

	if err := session.Authorize(actor, policy.ManageEmployees); err != nil {
		return nil, fmt.Errorf("add employee: %w", err)
	}

	empID := strings.TrimSpace(req.EmpID)
	if empID == "" {
		return nil, fmt.Errorf("add employee: empty id: %w", core.ErrInvalidInput)
	}
	if req.Salary <= 0 {
		return nil, fmt.Errorf("add employee: salary must be positive: %w", core.ErrInvalidInput)
	}

	sealed, err := s.cipher.EncryptString(req.BankAccount)
	if err != nil {
		return nil, fmt.Errorf("add employee: %w", err)
	}

	emp := &Employee{
		EmpID:           empID,
		Name:            strings.TrimSpace(req.Name),
		Position:        strings.TrimSpace(req.Position),
		Salary:          req.Salary,
		BankAccount:     sealed,
		CurrentBalance:  req.Salary,
		TotalDeductions: 0,
		CreatedBy:       actor.Username,
	}

	if err := s.store.Create(ctx, emp); err != nil {
		return nil, fmt.Errorf("add employee: %w", err)
	}

	s.logger.InfoContext(ctx, "employee added",
		"emp_id", emp.EmpID,
		"by", actor.Username,
	)

	s.announce(ctx, emp.EmpID, func(to string) (notify.Message, error) {
		return notify.EmployeeAdded(to, emp.EmpID, emp.Name, emp.Position, emp.Salary)
	})

	return emp, nil
}

// Deduct lowers an employee's balance and records why. The balance check,
// the update and the audit entry commit together or not at all.
func (s *Service) Deduct(
	ctx context.Context,
	actor *session.Session,
	empID string,
	amount int64,
	reason string,
) (_ *Posting, err error) {
	ctx, span := core.StartSpan(ctx, "ledger.Deduct",
		attribute.String("emp_id", empID),
		attribute.Int64("amount", amount))
	defer func() { s.finish(span, "deduct", err) }()

	if err := session.Authorize(actor, policy.ManageFinance); err != nil {
		return nil, fmt.Errorf("deduct: %w", err)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("deduct: amount must be positive: %w", core.ErrInvalidInput)
	}

	reason = strings.TrimSpace(reason)
	posting, err := s.post(ctx, empID, func(emp *Employee) (*Transaction, error) {
		if err := emp.Deduct(amount); err != nil {
			return nil, err
		}
		return &Transaction{
			EmpID:  emp.EmpID,
			Kind:   KindDeduction,
			Amount: amount,
			Reason: &reason,
			Actor:  actor.Username,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("deduct: %w", err)
	}

	s.logger.InfoContext(ctx, "salary deducted",
		"emp_id", empID,
		"amount", amount,
		"balance", posting.Employee.CurrentBalance,
		"by", actor.Username,
	)

	emp := posting.Employee
	s.announce(ctx, empID, func(to string) (notify.Message, error) {
		return notify.SalaryDeducted(to, empID, emp.Name, reason, amount, emp.CurrentBalance)
	})

	return posting, nil
}

// Pay restores the full salary. Every call appends its own audit entry even
// when the balance was already full.
func (s *Service) Pay(
	ctx context.Context,
	actor *session.Session,
	empID string,
) (_ *Posting, err error) {
	ctx, span := core.StartSpan(ctx, "ledger.Pay",
		attribute.String("emp_id", empID))
	defer func() { s.finish(span, "pay", err) }()

	if err := session.Authorize(actor, policy.ManageFinance); err != nil {
		return nil, fmt.Errorf("pay: %w", err)
	}

	posting, err := s.post(ctx, empID, func(emp *Employee) (*Transaction, error) {
		return &Transaction{
			EmpID:  emp.EmpID,
			Kind:   KindPayment,
			Amount: emp.Pay(),
			Actor:  actor.Username,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pay: %w", err)
	}

	s.logger.InfoContext(ctx, "salary paid",
		"emp_id", empID,
		"amount", posting.Transaction.Amount,
		"by", actor.Username,
	)

	emp := posting.Employee
	s.announce(ctx, empID, func(to string) (notify.Message, error) {
		return notify.SalaryPaid(to, empID, emp.Name, posting.Transaction.Amount)
	})

	return posting, nil
}

// GetEmployee returns the record with its bank account decrypted and its
// history newest first. Holders of a reporting or management permission may
// read any record; anyone else only their own.
func (s *Service) GetEmployee(
	ctx context.Context,
	viewer *session.Session,
	empID string,
) (_ *Record, err error) {
	ctx, span := core.StartSpan(ctx, "ledger.GetEmployee",
		attribute.String("emp_id", empID))
	defer func() { s.finish(span, "get_employee", err) }()

	if err := authorizeView(viewer, empID); err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}

	emp, err := s.store.Get(ctx, empID)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}

	account, err := s.cipher.DecryptString(emp.BankAccount)
	if err != nil {
		s.logger.ErrorContext(ctx, "bank account failed authentication",
			"emp_id", empID,
		)
		return nil, fmt.Errorf("get employee %s: %w", empID, err)
	}

	txs, err := s.store.Transactions(ctx, empID, TransactionFilter{NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}

	return &Record{
		Employee:     *emp,
		BankAccount:  account,
		Transactions: txs,
	}, nil
}

func (s *Service) ListEmployees(
	ctx context.Context,
	actor *session.Session,
	params ListEmployeesParams,
) ([]Employee, int, error) {
	if err := session.Authorize(actor, policy.ViewReports); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	return s.store.List(ctx, params)
}

// History lists an employee's transactions oldest first, optionally only
// one kind.
func (s *Service) History(
	ctx context.Context,
	actor *session.Session,
	empID string,
	kind Kind,
) ([]Transaction, error) {
	if actor == nil {
		return nil, core.ErrUnauthenticated
	}
	if !policy.CheckAny(actor.Role, policy.ManageFinance, policy.ViewReports) {
		return nil, fmt.Errorf("history: %w", core.ErrPermissionDenied)
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("history: unknown kind %q: %w", kind, core.ErrInvalidInput)
	}

	if _, err := s.store.Get(ctx, empID); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return s.store.Transactions(ctx, empID, TransactionFilter{Kind: kind})
}

func (s *Service) Summary(ctx context.Context, actor *session.Session) (Summary, error) {
	if err := session.Authorize(actor, policy.ViewReports); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return s.store.Summary(ctx)
}

// post runs one balance mutation under the employee's row lock: load,
// apply, persist, append the audit entry.
func (s *Service) post(
	ctx context.Context,
	empID string,
	apply func(emp *Employee) (*Transaction, error),
) (*Posting, error) {
	var posting Posting

	err := s.store.Atomically(ctx, func(repo Repository) error {
		emp, err := repo.GetForUpdate(ctx, empID)
		if err != nil {
			return err
		}

		tx, err := apply(emp)
		if err != nil {
			return err
		}

		if err := repo.UpdateBalance(ctx, emp); err != nil {
			return err
		}
		if err := repo.AppendTransaction(ctx, tx); err != nil {
			return err
		}

		posting = Posting{Employee: *emp, Transaction: *tx}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &posting, nil
}

// announce notifies the employee's own account, if one exists. Nothing here
// can fail the ledger operation that already committed.
func (s *Service) announce(
	ctx context.Context,
	empID string,
	render func(to string) (notify.Message, error),
) {
	owner := OwnerUsername(empID)

	to, err := s.directory.EmailFor(ctx, owner)
	if errors.Is(err, core.ErrUserNotFound) {
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "notification recipient lookup failed",
			"username", owner,
			"error", err,
		)
		return
	}

	msg, err := render(to)
	if err != nil {
		s.logger.ErrorContext(ctx, "render notification", "error", err)
		return
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification not sent",
			"to", to,
			"subject", msg.Subject,
			"error", err,
		)
	}
}

func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(core.KindOf(err))
	}
	metrics.LedgerOperationsTotal.WithLabelValues(op, outcome).Inc()
	core.EndSpan(span, err)
}

func authorizeView(viewer *session.Session, empID string) error {
	if viewer == nil {
		return core.ErrUnauthenticated
	}
	if policy.CheckAny(viewer.Role,
		policy.ViewReports,
		policy.ManageEmployees,
		policy.ManageFinance,
	) {
		return nil
	}
	if viewer.Username == OwnerUsername(empID) {
		return nil
	}
	return fmt.Errorf("%s may not view %s: %w", viewer.Username, empID, core.ErrPermissionDenied)
}
