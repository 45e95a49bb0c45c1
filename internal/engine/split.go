package engine

import "github.com/shopspring/decimal"

// SplitType labels a single line of a payment plan. The wire strings match
// what the mobile client already renders.
type SplitType string

const (
	SplitPayoff         SplitType = "Payoff"
	SplitStrategicSkip  SplitType = "Strategic Skip"
	SplitPowerPayment   SplitType = "Power Payment"
	SplitMinimumPayment SplitType = "Minimum Payment"
)

// Fixed objective labels for the two produced plans.
const (
	PlanNameAvalanche    = "Avalanche Method"
	PlanNameScoreBooster = "Credit Score Booster"
)

// SplitItem is one allocation line: how much of the payment goes to one card
// and why. Amounts are rounded to 2 decimal places.
type SplitItem struct {
	CardID   string          `json:"card_id"`
	CardName string          `json:"card_name"`
	Amount   decimal.Decimal `json:"amount"`
	Type     SplitType       `json:"type"`
}

// Plan is one complete split of the payment under a single objective.
type Plan struct {
	Name         string      `json:"name"`
	Split        []SplitItem `json:"split"`
	TargetCardID string      `json:"target_card_id,omitempty"`
}

// Total sums the plan's line amounts.
func (p Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Split {
		total = total.Add(item.Amount)
	}
	return total
}

// Context carries the objective-independent facts shared by both plans.
type Context struct {
	PaidOffCards []string `json:"paid_off_cards"`
	SkippedCards []string `json:"skipped_cards"`
}

// AllocationResult is the engine's complete answer for one call.
//
// LeftoverAmount is any discretionary money that survives all phases (every
// account paid off or skipped); it is surfaced explicitly rather than being
// silently dropped. InsufficientFunds marks the degraded allocation where the
// payment could not cover every minimum; it is a result flag, not an error.
type AllocationResult struct {
	AvalanchePlan     Plan            `json:"avalanche_plan"`
	ScoreBoosterPlan  Plan            `json:"score_booster_plan"`
	Context           Context         `json:"context"`
	InsufficientFunds bool            `json:"insufficient_funds"`
	LeftoverAmount    decimal.Decimal `json:"leftover_amount"`
}
