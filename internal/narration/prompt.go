package narration

import (
	"encoding/json"
	"fmt"
	"strings"

	"nexus/internal/engine"
)

// buildNarratePrompt asks the model for prose only: the math is already done
// and included verbatim, and the model is told to leave it alone. The answer
// comes back inside <answer> tags or a ```json fence as a flat JSON object
// with the five required text fields.
func buildNarratePrompt(result *engine.AllocationResult, user UserContext) (string, error) {
	planData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal plan data: %w", err)
	}
	userData, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal user context: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are Nexus AI, an elite financial counselor. Your tone is clear, empowering, data-driven, and you-focused.

The payment plans below are already computed and FINAL. Do not recompute, reorder, or change any amount. Your only task is to explain them.

Write, for each plan, an explanation of why it helps and a quantified projected outcome:
- Avalanche: state the interest logic (highest APR first) and estimate interest saved over the next 12 months.
- Score Booster: state the specific utilization drop driven by the power payment and a realistic credit score point range.
- Mention paid-off cards as wins and strategically skipped 0% APR cards as deliberate.
- If insufficient_funds is true, say plainly that the payment cannot cover every minimum and what the plan does instead.
- Based on the user's primary goal, pick one plan as the overall recommendation.

Respond with ONLY a valid JSON object inside <answer> tags, with exactly these keys:
{"nexus_recommendation": "...", "minimize_interest_explanation": "...", "minimize_interest_projection": "...", "maximize_score_explanation": "...", "maximize_score_projection": "..."}

PLAN DATA:
`)
	b.Write(planData)
	b.WriteString("\n\nUSER CONTEXT:\n")
	b.Write(userData)
	return b.String(), nil
}

// buildReExplainPrompt explains the user's hand-modified split against the
// engine's optimal plan.
func buildReExplainPrompt(accounts []engine.Account, optimal engine.Plan, custom []engine.SplitItem, user UserContext) (string, error) {
	accountData, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal accounts: %w", err)
	}
	optimalData, err := json.MarshalIndent(optimal, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal optimal plan: %w", err)
	}
	customData, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal custom split: %w", err)
	}
	userData, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal user context: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are Nexus AI, a financial counselor. The user has hand-modified the optimal payment split below into their own custom split. Do not change any number in either split.

Explain, in 2-4 supportive sentences, what their custom split trades away or gains compared to the optimal plan (interest cost, utilization, payoff speed). Be honest about downsides but never scold.

Respond with ONLY a valid JSON object inside <answer> tags: {"explanation": "..."}

ACCOUNTS:
`)
	b.Write(accountData)
	b.WriteString("\n\nOPTIMAL PLAN:\n")
	b.Write(optimalData)
	b.WriteString("\n\nCUSTOM SPLIT:\n")
	b.Write(customData)
	b.WriteString("\n\nUSER CONTEXT:\n")
	b.Write(userData)
	return b.String(), nil
}
