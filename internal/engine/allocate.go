package engine

import "github.com/shopspring/decimal"

// Objective selects which competing goal a plan optimizes for.
type Objective int

const (
	// ObjectiveAvalanche targets the highest-APR card to minimize interest.
	ObjectiveAvalanche Objective = iota
	// ObjectiveScoreBooster targets the highest-utilization card to most
	// improve credit-utilization-based scoring.
	ObjectiveScoreBooster
)

func (o Objective) planName() string {
	if o == ObjectiveScoreBooster {
		return PlanNameScoreBooster
	}
	return PlanNameAvalanche
}

// primaryKey is the first component of the target selection key.
func (o Objective) primaryKey(acc EnrichedAccount) decimal.Decimal {
	if o == ObjectiveScoreBooster {
		return acc.UtilizationPercent
	}
	return acc.APR
}

// allocation is one objective's slice of the plan beyond payoffs and skips.
type allocation struct {
	items        []SplitItem
	targetCardID string
	insufficient bool
}

// pickTarget selects the power-payment target: the account maximizing
// (primary key, balance, id) lexicographically. The final tie falls to the
// greatest id; the comparison the original service shipped resolved ties that
// way, so existing plans are reproduced exactly.
func pickTarget(cards []EnrichedAccount, objective Objective) EnrichedAccount {
	target := cards[0]
	for _, acc := range cards[1:] {
		tk, ak := objective.primaryKey(target), objective.primaryKey(acc)
		switch {
		case ak.GreaterThan(tk):
			target = acc
		case ak.Equal(tk):
			switch {
			case acc.Balance.GreaterThan(target.Balance):
				target = acc
			case acc.Balance.Equal(target.Balance) && acc.ID > target.ID:
				target = acc
			}
		}
	}
	return target
}

// allocatePlan assigns the discretionary remainder across the cards requiring
// minimums for one objective: every non-target card receives exactly its
// minimum and the target absorbs whatever remains as the power payment.
//
// Terminal states (no cards requiring minimums, or nothing left to allocate)
// produce no lines at all: the plan consists solely of the Payoff and
// Strategic Skip entries already emitted.
//
// When the remainder cannot honor every minimum the engine degrades instead of
// emitting partial or negative amounts: the whole remainder goes to the target
// as a single power payment, the other cards get no line for this phase, and
// the insufficient flag is raised for the caller to surface.
func allocatePlan(cards []EnrichedAccount, remaining decimal.Decimal, objective Objective) allocation {
	if len(cards) == 0 || !remaining.IsPositive() {
		return allocation{}
	}

	target := pickTarget(cards, objective)

	totalMinimums := decimal.Zero
	for _, acc := range cards {
		totalMinimums = totalMinimums.Add(acc.MinimumPayment)
	}

	if remaining.LessThan(totalMinimums) {
		return allocation{
			items: []SplitItem{{
				CardID:   target.ID,
				CardName: target.Name,
				Amount:   remaining.Round(2),
				Type:     SplitPowerPayment,
			}},
			targetCardID: target.ID,
			insufficient: true,
		}
	}

	// The power payment is the remainder after every non-target card gets its
	// minimum. Summing the already-rounded line amounts keeps the plan total
	// equal to the remainder by construction rather than by correction.
	items := make([]SplitItem, 0, len(cards))
	nonTargetTotal := decimal.Zero
	for _, acc := range cards {
		if acc.ID == target.ID {
			// placeholder filled below once the rounded minimums are known
			items = append(items, SplitItem{CardID: acc.ID, CardName: acc.Name, Type: SplitPowerPayment})
			continue
		}
		amount := acc.MinimumPayment.Round(2)
		nonTargetTotal = nonTargetTotal.Add(amount)
		items = append(items, SplitItem{
			CardID:   acc.ID,
			CardName: acc.Name,
			Amount:   amount,
			Type:     SplitMinimumPayment,
		})
	}
	for i := range items {
		if items[i].CardID == target.ID {
			items[i].Amount = remaining.Sub(nonTargetTotal).Round(2)
		}
	}
	return allocation{items: items, targetCardID: target.ID}
}
