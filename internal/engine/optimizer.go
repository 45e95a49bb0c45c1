package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// optimizePlan is the alternative, LP-formulated allocator: minimize projected
// interest (Avalanche) or post-payment utilization (ScoreBooster) subject to
// Σ payment_i = remaining and 0 ≤ payment_i ≤ balance_i. A linear program with
// one equality constraint and box bounds is solved exactly by filling the
// cards in priority order until the funds run out, so no solver is involved.
//
// Unlike allocatePlan it ignores minimum payments entirely; that is the
// formulation's trade-off, selected by configuration.
func optimizePlan(cards []EnrichedAccount, remaining decimal.Decimal, objective Objective) allocation {
	if len(cards) == 0 || !remaining.IsPositive() {
		return allocation{}
	}

	byPriority := make([]EnrichedAccount, len(cards))
	copy(byPriority, cards)
	sort.SliceStable(byPriority, func(i, j int) bool {
		a, b := byPriority[i], byPriority[j]
		ka, kb := objective.primaryKey(a), objective.primaryKey(b)
		if !ka.Equal(kb) {
			return ka.GreaterThan(kb)
		}
		if !a.Balance.Equal(b.Balance) {
			return a.Balance.GreaterThan(b.Balance)
		}
		return a.ID > b.ID
	})

	fills := make(map[string]decimal.Decimal, len(cards))
	left := remaining
	for _, acc := range byPriority {
		if !left.IsPositive() {
			break
		}
		fill := decimal.Min(left, acc.Balance)
		fills[acc.ID] = fill.Round(2)
		left = left.Sub(fill)
	}

	// Lines come out in the caller's input order. A card filled to its full
	// balance is a payoff; the partially funded boundary card carries the
	// power payment; unfunded cards get an explicit zero minimum line so every
	// card still appears in the plan.
	res := allocation{targetCardID: byPriority[0].ID}
	for _, acc := range cards {
		item := SplitItem{CardID: acc.ID, CardName: acc.Name, Amount: decimal.Zero.Round(2), Type: SplitMinimumPayment}
		if fill, ok := fills[acc.ID]; ok && fill.IsPositive() {
			item.Amount = fill
			if fill.Equal(acc.Balance.Round(2)) {
				item.Type = SplitPayoff
			} else {
				item.Type = SplitPowerPayment
			}
		}
		res.items = append(res.items, item)
	}
	return res
}
