// Package ledger is the only code path allowed to change a family's balance,
// its bills, or a person's payroll and status flags. Every operation re-reads
// current state, validates it, and writes inside one transaction while holding
// the per-entity locks, then tells the notifier about the change.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
	"budgetsim/internal/log"
	"budgetsim/internal/storage"
)

// Store runs fn inside one atomic transaction.
type Store interface {
	InTx(ctx context.Context, fn func(storage.Tx) error) error
}

// Notifier learns about every committed change. Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, change core.Change)
}

// Recorder receives operation outcomes, typically Prometheus collectors.
type Recorder interface {
	ObserveLedger(operation, outcome string, elapsed time.Duration)
}

// Outcomes reported to the Recorder.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Payroll is the result of paying an employee: both entities after the write.
type Payroll struct {
	Family *core.Family `json:"family"`
	Person *core.Person `json:"person"`
}

// Service applies ledger operations. Writes touching the same family or person
// are serialized, and each committed write is reported to the notifier.
type Service struct {
	store    Store
	policy   Policy
	locks    *keyedMutex
	notifier Notifier
	recorder Recorder
	logger   *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy replaces the default amount bounds.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithNotifier receives a change after every committed write. Nil is ignored.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRecorder observes the outcome and duration of each operation.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

// NewService builds a Service over store with the default policy.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policy:   DefaultPolicy(),
		locks:    newKeyedMutex(),
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		logger:   log.New(log.Config{Component: log.ComponentLedger, Handler: slog.Default().Handler()}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the bounds in force.
func (s *Service) Policy() Policy { return s.policy }

// Deposit adds amount to the family balance.
func (s *Service) Deposit(ctx context.Context, familyID int64, amount decimal.Decimal) (*core.Family, error) {
	var out *core.Family
	fields := log.NewFields().WithFamily(familyID).WithAmount(amount)

	err := s.run(ctx, log.OpDeposit, fields, []string{familyKey(familyID)},
		func() error { return s.policy.CheckAmount(amount) },
		func(tx storage.Tx) error {
			f, err := tx.GetFamily(ctx, familyID)
			if err != nil {
				return err
			}
			f.BankTotal = f.BankTotal.Add(amount)
			if err := tx.SaveFamily(ctx, f); err != nil {
				return err
			}
			out = f
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpDeposit, FamilyID: familyID})
	return out, nil
}

// Withdraw takes amount out of the balance if the family can cover it.
func (s *Service) Withdraw(ctx context.Context, familyID int64, amount decimal.Decimal) (*core.Family, error) {
	var out *core.Family
	fields := log.NewFields().WithFamily(familyID).WithAmount(amount)

	err := s.run(ctx, log.OpWithdraw, fields, []string{familyKey(familyID)},
		func() error { return s.policy.CheckAmount(amount) },
		func(tx storage.Tx) error {
			f, err := tx.GetFamily(ctx, familyID)
			if err != nil {
				return err
			}
			if err := s.policy.CheckFunds(f.BankTotal, amount); err != nil {
				return err
			}
			f.BankTotal = f.BankTotal.Sub(amount)
			if err := tx.SaveFamily(ctx, f); err != nil {
				return err
			}
			out = f
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpWithdraw, FamilyID: familyID})
	return out, nil
}

// PayBill pays amount towards billType. week is only meaningful for the weekly
// food bill; zero means no week was supplied.
func (s *Service) PayBill(ctx context.Context, familyID int64, billType string, amount decimal.Decimal, week int) (*core.Family, error) {
	var (
		out  *core.Family
		bill core.BillType
	)
	fields := log.NewFields().WithFamily(familyID).WithAmount(amount)
	fields[log.FieldBillType] = billType
	if week != 0 {
		fields[log.FieldWeek] = week
	}

	err := s.run(ctx, log.OpPayBill, fields, []string{familyKey(familyID)},
		func() error {
			if err := s.policy.CheckAmount(amount); err != nil {
				return err
			}
			b, err := core.ParseBillType(billType)
			if err != nil {
				return err
			}
			bill = b
			if bill.IsWeekly() && week != 0 {
				return core.ValidateWeek(week)
			}
			return nil
		},
		func(tx storage.Tx) error {
			f, err := tx.GetFamily(ctx, familyID)
			if err != nil {
				return err
			}
			if err := s.policy.CheckFunds(f.BankTotal, amount); err != nil {
				return err
			}
			if owed := f.Owed(bill); bill.IsDebt() && amount.GreaterThan(owed) {
				return &core.OverpaymentError{Owed: owed, Attempted: amount}
			}
			if bill.IsWeekly() && week != 0 && f.FoodPaid(week) {
				return core.Invalid(core.ErrAlreadyPaid, "Food for week %d has already been paid", week)
			}

			f.BankTotal = f.BankTotal.Sub(amount)
			f.ApplyPayment(bill, amount, week)
			if err := tx.SaveFamily(ctx, f); err != nil {
				return err
			}
			out = f
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpPayBill, FamilyID: familyID})
	return out, nil
}

// PayEmployee credits the family with a week's pay and marks that week paid.
// Both writes commit together or not at all.
func (s *Service) PayEmployee(ctx context.Context, familyID, personID int64, week int, amount decimal.Decimal) (*Payroll, error) {
	var out Payroll
	fields := log.NewFields().WithFamily(familyID).WithPerson(personID).WithAmount(amount)
	fields[log.FieldWeek] = week

	err := s.run(ctx, log.OpPayEmployee, fields, []string{familyKey(familyID), personKey(personID)},
		func() error {
			if err := core.ValidateWeek(week); err != nil {
				return err
			}
			return s.policy.CheckAmount(amount)
		},
		func(tx storage.Tx) error {
			p, err := tx.GetPerson(ctx, personID)
			if err != nil {
				return err
			}
			if p.FamilyID != familyID {
				return core.NewNotFound("person", personID)
			}
			switch {
			case p.Fired:
				return core.Invalid(core.ErrPersonFired, "Cannot deposit - person has been fired")
			case p.OnLeave:
				return core.Invalid(core.ErrPersonOnLeave, "Cannot deposit - person is on leave")
			case p.Paid(week):
				return core.Invalid(core.ErrAlreadyPaid, "This week has already been paid")
			}

			f, err := tx.GetFamily(ctx, familyID)
			if err != nil {
				return err
			}

			f.BankTotal = f.BankTotal.Add(amount)
			p.MarkPaid(week)
			if err := tx.SaveFamily(ctx, f); err != nil {
				return err
			}
			if err := tx.SavePerson(ctx, p); err != nil {
				return err
			}
			out = Payroll{Family: f, Person: p}
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpPayEmployee, FamilyID: familyID, PersonID: personID})
	return &out, nil
}

// SetPersonStatus sets the OnLeave or Fired flag. Pay is not touched.
func (s *Service) SetPersonStatus(ctx context.Context, personID int64, status string, value bool) (*core.Person, error) {
	var (
		out *core.Person
		st  core.PersonStatus
	)
	fields := log.NewFields().WithPerson(personID)
	fields[log.FieldStatus] = status

	err := s.run(ctx, log.OpSetStatus, fields, []string{personKey(personID)},
		func() error {
			var err error
			st, err = core.ParsePersonStatus(status)
			return err
		},
		func(tx storage.Tx) error {
			p, err := tx.GetPerson(ctx, personID)
			if err != nil {
				return err
			}
			st.Apply(p, value)
			if err := tx.SavePerson(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpSetStatus, FamilyID: out.FamilyID, PersonID: personID})
	return out, nil
}

// run checks preconditions that need no state, then executes fn in a
// transaction while holding keys. It logs and records the outcome.
func (s *Service) run(ctx context.Context, op string, fields log.LogFields, keys []string, check func() error, fn func(storage.Tx) error) error {
	start := time.Now()

	err := check()
	if err == nil {
		unlock := s.locks.Lock(keys...)
		err = s.store.InTx(ctx, fn)
		unlock()
	}

	fields.WithOperation(op)
	switch {
	case err == nil:
		s.recorder.ObserveLedger(op, OutcomeOK, time.Since(start))
		s.logger.InfoContext(ctx, "ledger operation applied", fields.ToSlice()...)
	case core.IsValidation(err):
		s.recorder.ObserveLedger(op, OutcomeRejected, time.Since(start))
		fields[log.FieldErrorType] = log.ErrorTypeValidation
		s.logger.WarnContext(ctx, "ledger operation rejected", fields.WithError(err).ToSlice()...)
	default:
		s.recorder.ObserveLedger(op, OutcomeError, time.Since(start))
		fields[log.FieldErrorType] = log.ErrorTypeDatabase
		s.logger.ErrorContext(ctx, "ledger operation failed", fields.WithError(err).ToSlice()...)
	}
	return err
}

func (s *Service) notify(ctx context.Context, change core.Change) {
	s.notifier.Notify(context.WithoutCancel(ctx), change)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, core.Change) {}

type nopRecorder struct{}

func (nopRecorder) ObserveLedger(string, string, time.Duration) {}
