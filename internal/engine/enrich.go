package engine

import "github.com/shopspring/decimal"

var (
	minimumFloor   = decimal.NewFromInt(25)   // cards under $25 owe the whole balance
	minimumRate    = decimal.NewFromFloat(0.01)
	hundredPercent = decimal.NewFromInt(100)
)

// enrich derives the per-account fields the later phases need, preserving the
// caller's ordering.
//
// Minimum payment follows the issuer convention: the full balance when it is
// at or under $25, otherwise the greater of $25 and 1% of the balance.
// Utilization is zero when the credit limit is zero; we guard rather than
// divide.
func enrich(accounts []Account) []EnrichedAccount {
	enriched := make([]EnrichedAccount, len(accounts))
	for i, acc := range accounts {
		e := EnrichedAccount{Account: acc}

		if acc.Balance.LessThanOrEqual(minimumFloor) {
			e.MinimumPayment = acc.Balance
		} else {
			onePercent := acc.Balance.Mul(minimumRate)
			if onePercent.GreaterThan(minimumFloor) {
				e.MinimumPayment = onePercent
			} else {
				e.MinimumPayment = minimumFloor
			}
		}

		if acc.CreditLimit.IsPositive() {
			e.UtilizationPercent = acc.Balance.Div(acc.CreditLimit).Mul(hundredPercent)
		} else {
			e.UtilizationPercent = decimal.Zero
		}

		enriched[i] = e
	}
	return enriched
}
