package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// payoffResult is what the payoff scan hands to the later phases.
type payoffResult struct {
	items     []SplitItem     // Payoff lines, in elimination order
	remaining decimal.Decimal // discretionary amount left after payoffs
	processed map[string]bool // account ids fully eliminated
	paidOff   []string        // card names for the shared context
}

// scanPayoffs retires accounts whose balance is fully covered by the remaining
// funds, smallest balance first, so low-balance cards are eliminated before
// any larger strategic decision is made. The payoff decision is
// objective-independent: identical lines appear in both plans.
//
// Equal balances keep the caller's input order (stable sort); the order
// matters when equal-balance accounts compete for the last of the funds, so it
// has to be deterministic. Zero-balance accounts have nothing to eliminate and
// fall through untouched.
func scanPayoffs(accounts []EnrichedAccount, paymentAmount decimal.Decimal) payoffResult {
	byBalance := make([]EnrichedAccount, len(accounts))
	copy(byBalance, accounts)
	sort.SliceStable(byBalance, func(i, j int) bool {
		return byBalance[i].Balance.LessThan(byBalance[j].Balance)
	})

	res := payoffResult{
		remaining: paymentAmount,
		processed: make(map[string]bool),
	}
	for _, acc := range byBalance {
		if !acc.Balance.IsPositive() || res.remaining.LessThan(acc.Balance) {
			continue
		}
		res.items = append(res.items, SplitItem{
			CardID:   acc.ID,
			CardName: acc.Name,
			Amount:   acc.Balance.Round(2),
			Type:     SplitPayoff,
		})
		res.remaining = res.remaining.Sub(acc.Balance)
		res.processed[acc.ID] = true
		res.paidOff = append(res.paidOff, acc.Name)
	}

	if res.remaining.IsNegative() {
		// Numeric-stability guard only; exact decimal arithmetic should
		// never land here.
		res.remaining = decimal.Zero
	}
	return res
}
