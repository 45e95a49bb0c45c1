// Package engine implements the payment allocation engine: given a set of
// revolving-credit accounts and a single lump payment, it splits the payment
// across the accounts under two objectives (minimize interest, maximize
// credit-score benefit). The engine is a pure function of its inputs: no I/O,
// no state across calls.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is one revolving-credit account as supplied by the caller.
// Inputs are never mutated.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	APR         decimal.Decimal `json:"apr"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
}

// EnrichedAccount carries the derived fields the allocator works with.
type EnrichedAccount struct {
	Account
	MinimumPayment     decimal.Decimal
	UtilizationPercent decimal.Decimal
}

// ValidationError reports which input constraint was violated. It is fatal to
// the current call only and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// validateInput enforces the §3 invariants: non-empty account set, unique ids,
// non-negative balance/apr/limit, non-negative payment. Violations surface as
// ValidationError, never as a silent clamp.
func validateInput(accounts []Account, paymentAmount decimal.Decimal) error {
	if len(accounts) == 0 {
		return validationErrorf("accounts", "account list must not be empty")
	}
	if paymentAmount.IsNegative() {
		return validationErrorf("paymentAmount", "payment amount %s must not be negative", paymentAmount)
	}

	seen := make(map[string]bool, len(accounts))
	for i, acc := range accounts {
		if acc.ID == "" {
			return validationErrorf("id", "account at index %d has no id", i)
		}
		if seen[acc.ID] {
			return validationErrorf("id", "duplicate account id %q", acc.ID)
		}
		seen[acc.ID] = true

		if acc.Balance.IsNegative() {
			return validationErrorf("balance", "account %q has negative balance %s", acc.ID, acc.Balance)
		}
		if acc.APR.IsNegative() {
			return validationErrorf("apr", "account %q has negative apr %s", acc.ID, acc.APR)
		}
		if acc.CreditLimit.IsNegative() {
			return validationErrorf("creditLimit", "account %q has negative credit limit %s", acc.ID, acc.CreditLimit)
		}
	}
	return nil
}
