package ledger

import (
	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
)

// DefaultMaxAmount is the per-transaction cap used by classroom sessions.
var DefaultMaxAmount = decimal.NewFromInt(1000)

// Policy holds the bounds that varied between classroom setups.
type Policy struct {
	// MaxAmount caps a single transaction. Zero means uncapped.
	MaxAmount decimal.Decimal
	// AllowOverdraft lets withdrawals and bill payments take the balance negative.
	AllowOverdraft bool
}

// DefaultPolicy caps transactions at 1000 and forbids overdraft.
func DefaultPolicy() Policy {
	return Policy{MaxAmount: DefaultMaxAmount}
}

// CheckAmount enforces 0 < amount <= MaxAmount.
func (p Policy) CheckAmount(amount decimal.Decimal) error {
	capped := p.MaxAmount.IsPositive()
	if amount.IsPositive() && (!capped || amount.LessThanOrEqual(p.MaxAmount)) {
		return nil
	}
	if capped {
		return core.Invalid(core.ErrInvalidAmount, "Amount must be > 0 and ≤ %s", p.MaxAmount.String())
	}
	return core.Invalid(core.ErrInvalidAmount, "Amount must be > 0")
}

// CheckFunds rejects spending more than the balance unless overdraft is allowed.
func (p Policy) CheckFunds(balance, amount decimal.Decimal) error {
	if p.AllowOverdraft || amount.LessThanOrEqual(balance) {
		return nil
	}
	return &core.InsufficientFundsError{Available: balance, Required: amount}
}
