package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverpayment       = errors.New("overpayment")
	ErrAlreadyPaid       = errors.New("already paid")
	ErrPersonFired       = errors.New("person fired")
	ErrPersonOnLeave     = errors.New("person on leave")
	ErrUnknownBillType   = errors.New("unknown bill type")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidWeek       = errors.New("invalid week")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrStore marks persistence failures. They are never validation failures
	// and callers must not assume any state changed.
	ErrStore = errors.New("store failure")
)

var validationKinds = []error{
	ErrNotFound, ErrInvalidAmount, ErrInsufficientFunds, ErrOverpayment,
	ErrAlreadyPaid, ErrPersonFired, ErrPersonOnLeave, ErrUnknownBillType,
	ErrInvalidStatus, ErrInvalidWeek, ErrInvalidInput,
}

// ValidationError is a rule failure with a message meant for the end user.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Kind }

// Invalid builds a ValidationError of the given kind.
func Invalid(kind error, format string, args ...any) error {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing family or person.
type NotFoundError struct {
	Entity string
	ID     int64
}

func NewNotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	switch e.Entity {
	case "":
		return "Not found"
	default:
		return capitalize(e.Entity) + " not found"
	}
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError carries the numbers shown to the user.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient funds. Available: %s, Required: %s", Dollars(e.Available), Dollars(e.Required))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// OverpaymentError is returned when a debt payment exceeds the amount owed.
type OverpaymentError struct {
	Owed      decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("Cannot pay more than amount owed. Owed: %s, Attempted: %s", Dollars(e.Owed), Dollars(e.Attempted))
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// IsValidation reports whether err is a business rule failure, as opposed to
// a persistence or transport failure.
func IsValidation(err error) bool {
	if err == nil || errors.Is(err, ErrStore) {
		return false
	}
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
