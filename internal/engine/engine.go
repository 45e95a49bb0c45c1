package engine

import "github.com/shopspring/decimal"

// Strategy selects how the discretionary remainder is allocated once payoffs
// and skips are settled.
type Strategy string

const (
	// StrategyGreedy is the default minimums-plus-power-payment allocator.
	StrategyGreedy Strategy = "greedy"
	// StrategyOptimizer is the LP-formulated allocator; see optimizePlan.
	StrategyOptimizer Strategy = "optimizer"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyGreedy || s == StrategyOptimizer
}

// Engine computes payment allocations. It is stateless and safe for
// concurrent use.
type Engine struct {
	strategy Strategy
}

// New returns an engine using the given allocation strategy; an unknown or
// empty strategy falls back to greedy.
func New(strategy Strategy) *Engine {
	if !strategy.Valid() {
		strategy = StrategyGreedy
	}
	return &Engine{strategy: strategy}
}

// Allocate splits paymentAmount across the given accounts and produces the
// Avalanche and Score Booster plans plus their shared context. It is a pure
// function: identical inputs produce identical results, and caller-owned data
// is never mutated.
//
// The phases run strictly in sequence: enrichment, payoff scan, skip
// classification, then per-objective allocation over whatever remains.
func (e *Engine) Allocate(accounts []Account, paymentAmount decimal.Decimal) (*AllocationResult, error) {
	if err := validateInput(accounts, paymentAmount); err != nil {
		return nil, err
	}

	enriched := enrich(accounts)
	payoffs := scanPayoffs(enriched, paymentAmount)
	skips := classifySkips(enriched, payoffs.processed)

	allocate := allocatePlan
	if e.strategy == StrategyOptimizer {
		allocate = optimizePlan
	}
	avalanche := allocate(skips.requiring, payoffs.remaining, ObjectiveAvalanche)
	booster := allocate(skips.requiring, payoffs.remaining, ObjectiveScoreBooster)

	result := &AllocationResult{
		AvalanchePlan:     assemble(PlanNameAvalanche, payoffs, skips, avalanche),
		ScoreBoosterPlan:  assemble(PlanNameScoreBooster, payoffs, skips, booster),
		Context: Context{
			PaidOffCards: append([]string(nil), payoffs.paidOff...),
			SkippedCards: append([]string(nil), skips.skipped...),
		},
		InsufficientFunds: avalanche.insufficient || booster.insufficient,
		LeftoverAmount:    e.leftover(skips.requiring, payoffs.remaining).Round(2),
	}
	return result, nil
}

// leftover is the discretionary amount no phase could place: everything when
// no card requires a minimum, and under the optimizer whatever exceeds the
// combined balances of the remaining cards. The greedy allocator always
// absorbs the full remainder into the power payment.
func (e *Engine) leftover(requiring []EnrichedAccount, remaining decimal.Decimal) decimal.Decimal {
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	if len(requiring) == 0 {
		return remaining
	}
	if e.strategy != StrategyOptimizer {
		return decimal.Zero
	}
	capacity := decimal.Zero
	for _, acc := range requiring {
		capacity = capacity.Add(acc.Balance)
	}
	if remaining.GreaterThan(capacity) {
		return remaining.Sub(capacity)
	}
	return decimal.Zero
}

// assemble is the deterministic merge: payoff lines in elimination order,
// skip lines in input order, then the allocator's lines in input order.
func assemble(name string, payoffs payoffResult, skips skipResult, alloc allocation) Plan {
	split := make([]SplitItem, 0, len(payoffs.items)+len(skips.items)+len(alloc.items))
	split = append(split, payoffs.items...)
	split = append(split, skips.items...)
	split = append(split, alloc.items...)
	return Plan{Name: name, Split: split, TargetCardID: alloc.targetCardID}
}

// Allocate runs a one-off allocation with the default greedy strategy.
func Allocate(accounts []Account, paymentAmount decimal.Decimal) (*AllocationResult, error) {
	return New(StrategyGreedy).Allocate(accounts, paymentAmount)
}
