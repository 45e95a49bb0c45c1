package engine

import "github.com/shopspring/decimal"

// skipResult separates the not-yet-processed accounts into promotional
// zero-APR cards (strategically skipped) and cards that must receive ordinary
// treatment.
type skipResult struct {
	items     []SplitItem       // Strategic Skip lines, in input order
	requiring []EnrichedAccount // cards requiring minimums, in input order
	skipped   []string          // card names for the shared context
}

// classifySkips marks every unprocessed zero-APR account as a $0 strategic
// skip: a power payment there yields no interest benefit, so funds concentrate
// on interest-bearing debt instead. Like the payoff scan, this classification
// is objective-independent.
func classifySkips(accounts []EnrichedAccount, processed map[string]bool) skipResult {
	var res skipResult
	for _, acc := range accounts {
		if processed[acc.ID] {
			continue
		}
		if acc.APR.IsPositive() {
			res.requiring = append(res.requiring, acc)
			continue
		}
		res.items = append(res.items, SplitItem{
			CardID:   acc.ID,
			CardName: acc.Name,
			Amount:   decimal.Zero.Round(2),
			Type:     SplitStrategicSkip,
		})
		res.skipped = append(res.skipped, acc.Name)
	}
	return res
}
