package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"nexus/internal/core"
	"nexus/internal/engine"
)

// StaticNarrator produces deterministic template explanations from the
// allocation result alone. It serves requests when no model API key is
// configured and acts as the fallback when the model call fails; runs narrated
// this way are later backfilled by the worker.
type StaticNarrator struct{}

func NewStaticNarrator() *StaticNarrator { return &StaticNarrator{} }

func (s *StaticNarrator) Name() string { return "static" }

// Narrate implements Narrator. It never fails.
func (s *StaticNarrator) Narrate(_ context.Context, result *engine.AllocationResult, user UserContext) (*Narratives, error) {
	n := &Narratives{
		Recommendation:          s.recommend(user),
		AvalancheExplanation:    s.explainAvalanche(result),
		AvalancheProjection:     "Keeping the power payment on your highest-rate card is the fastest mathematical path out of debt; the savings compound every month you stick with it.",
		ScoreBoosterExplanation: s.explainScoreBooster(result),
		ScoreBoosterProjection:  "Lowering utilization on your most-used card is one of the quickest levers on your credit score, and the effect typically shows within 2-3 statement cycles.",
	}
	return n, nil
}

// ReExplain implements Narrator.
func (s *StaticNarrator) ReExplain(_ context.Context, _ []engine.Account, optimal engine.Plan, custom []engine.SplitItem, _ UserContext) (string, error) {
	customTotal := decimal.Zero
	for _, item := range custom {
		customTotal = customTotal.Add(item.Amount)
	}
	return fmt.Sprintf(
		"Your custom split allocates %s across %d cards. Compared to the optimal %s, it may cost more in interest or slow your utilization drop, but any plan you will actually follow beats a perfect one you won't.",
		core.FormatUSD(customTotal), len(custom), optimal.Name), nil
}

func (s *StaticNarrator) recommend(user UserContext) string {
	if strings.Contains(strings.ToLower(user.PrimaryGoal), "score") {
		return engine.PlanNameScoreBooster
	}
	return engine.PlanNameAvalanche
}

func (s *StaticNarrator) explainAvalanche(result *engine.AllocationResult) string {
	var b strings.Builder
	b.WriteString("This plan pays the minimum on every card and directs the rest at your highest-APR card, which cuts your interest cost the fastest.")
	s.appendShared(&b, result)
	return b.String()
}

func (s *StaticNarrator) explainScoreBooster(result *engine.AllocationResult) string {
	var b strings.Builder
	b.WriteString("This plan targets the card with the highest credit utilization, the balance-to-limit ratio that weighs heavily on your credit score.")
	s.appendShared(&b, result)
	return b.String()
}

func (s *StaticNarrator) appendShared(b *strings.Builder, result *engine.AllocationResult) {
	if len(result.Context.PaidOffCards) > 0 {
		fmt.Fprintf(b, " It also completely pays off %s, an instant win.",
			strings.Join(result.Context.PaidOffCards, ", "))
	}
	if len(result.Context.SkippedCards) > 0 {
		fmt.Fprintf(b, " %s carries no interest right now, so it is deliberately skipped to concentrate your money where it works hardest.",
			strings.Join(result.Context.SkippedCards, ", "))
	}
	if result.InsufficientFunds {
		b.WriteString(" Heads up: this payment cannot cover every card's minimum, so the full amount goes to the single most impactful card instead.")
	}
	if result.LeftoverAmount.IsPositive() {
		fmt.Fprintf(b, " After all balances are handled, %s of your payment is left unallocated.",
			core.FormatUSD(result.LeftoverAmount))
	}
}
