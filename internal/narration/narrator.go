// Package narration turns an allocation result into human-readable plan
// explanations. Narrators annotate; they never alter the numeric splits.
package narration

import (
	"context"

	"github.com/shopspring/decimal"

	"nexus/internal/engine"
)

// UserContext carries the free-form user state the narrator personalizes
// with. It has no influence on the numbers.
type UserContext struct {
	PrimaryGoal        string           `json:"primary_goal"`
	TotalDebtLastMonth *decimal.Decimal `json:"total_debt_last_month,omitempty"`
	LastPlanChosen     string           `json:"last_plan_chosen,omitempty"`
}

// Narratives is the per-plan prose attached to an allocation result.
type Narratives struct {
	Recommendation          string `json:"nexus_recommendation"`
	AvalancheExplanation    string `json:"minimize_interest_explanation"`
	AvalancheProjection     string `json:"minimize_interest_projection"`
	ScoreBoosterExplanation string `json:"maximize_score_explanation"`
	ScoreBoosterProjection  string `json:"maximize_score_projection"`
}

// Complete reports whether every required text field is present.
func (n *Narratives) Complete() bool {
	return n.Recommendation != "" &&
		n.AvalancheExplanation != "" && n.AvalancheProjection != "" &&
		n.ScoreBoosterExplanation != "" && n.ScoreBoosterProjection != ""
}

// Narrator produces plan explanations for a computed allocation.
type Narrator interface {
	// Narrate explains both plans of the given result.
	Narrate(ctx context.Context, result *engine.AllocationResult, user UserContext) (*Narratives, error)

	// ReExplain explains a user's custom split against the engine's optimal
	// plan, without changing either.
	ReExplain(ctx context.Context, accounts []engine.Account, optimal engine.Plan, custom []engine.SplitItem, user UserContext) (string, error)

	// Name identifies the narrator implementation for health reporting.
	Name() string
}
