// Package scorers provides the rules behind quote analysis.
package scorers

import (
	"fmt"
	"math"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/scoring"
)

// RangeScorer rewards prices near the 52 week low and penalizes prices near
// the high.
type RangeScorer struct{}

// Score implements scoring.Scorer.
func (RangeScorer) Score(q domain.Quote) (int, []scoring.Signal) {
	if !present(q.FiftyTwoWeekHigh) || !present(q.FiftyTwoWeekLow) {
		return 0, nil
	}
	high, low := *q.FiftyTwoWeekHigh, *q.FiftyTwoWeekLow

	position := 0.5
	if high != low {
		position = (q.Price - low) / (high - low)
	}

	switch {
	case position < 0.3:
		return 20, []scoring.Signal{{
			Type:    scoring.SignalPositive,
			Message: fmt.Sprintf("Próximo da mínima de 52 semanas (R$ %.2f)", low),
		}}
	case position > 0.8:
		return -10, []scoring.Signal{{
			Type:    scoring.SignalWarning,
			Message: fmt.Sprintf("Próximo da máxima de 52 semanas (R$ %.2f)", high),
		}}
	}
	return 0, nil
}

// ValuationScorer grades the trailing P/E ratio.
type ValuationScorer struct{}

// Score implements scoring.Scorer.
func (ValuationScorer) Score(q domain.Quote) (int, []scoring.Signal) {
	if !present(q.PERatio) {
		return 0, nil
	}
	pe := *q.PERatio

	switch {
	case pe < 8:
		return 25, []scoring.Signal{{
			Type:    scoring.SignalPositive,
			Message: fmt.Sprintf("P/L baixo (%.1f) - possível oportunidade", pe),
		}}
	case pe < 15:
		return 10, []scoring.Signal{{
			Type:    scoring.SignalNeutral,
			Message: fmt.Sprintf("P/L razoável (%.1f)", pe),
		}}
	case pe > 25:
		return -15, []scoring.Signal{{
			Type:    scoring.SignalWarning,
			Message: fmt.Sprintf("P/L alto (%.1f) - pode estar cara", pe),
		}}
	}
	return 0, nil
}

// YieldScorer grades the dividend yield, expressed in percent.
type YieldScorer struct{}

// Score implements scoring.Scorer.
func (YieldScorer) Score(q domain.Quote) (int, []scoring.Signal) {
	if !present(q.DividendYield) {
		return 0, nil
	}
	dy := *q.DividendYield

	switch {
	case dy > 6:
		return 20, []scoring.Signal{{
			Type:    scoring.SignalPositive,
			Message: fmt.Sprintf("Dividend Yield atrativo (%.1f%%)", dy),
		}}
	case dy > 3:
		return 5, []scoring.Signal{{
			Type:    scoring.SignalNeutral,
			Message: fmt.Sprintf("Dividend Yield razoável (%.1f%%)", dy),
		}}
	}
	return 0, nil
}

// MoveScorer flags large daily moves. It never changes the score.
type MoveScorer struct{}

// Score implements scoring.Scorer.
func (MoveScorer) Score(q domain.Quote) (int, []scoring.Signal) {
	change := q.ChangePercent
	switch {
	case change < -3:
		return 0, []scoring.Signal{{
			Type:    scoring.SignalInfo,
			Message: fmt.Sprintf("Queda de %.1f%% hoje - verificar motivo", math.Abs(change)),
		}}
	case change > 3:
		return 0, []scoring.Signal{{
			Type:    scoring.SignalInfo,
			Message: fmt.Sprintf("Alta de %.1f%% hoje", change),
		}}
	}
	return 0, nil
}

// Default is the rule set applied by Analyze, in signal order.
var Default = []scoring.Scorer{RangeScorer{}, ValuationScorer{}, YieldScorer{}, MoveScorer{}}

// Analyze scores a quote snapshot with the Default rules.
func Analyze(q domain.Quote) scoring.Analysis {
	return AnalyzeWith(q, Default...)
}

// AnalyzeWith scores a quote snapshot with the given rules. The result
// depends only on q.
func AnalyzeWith(q domain.Quote, rules ...scoring.Scorer) scoring.Analysis {
	a := scoring.Analysis{
		Ticker:  q.Ticker,
		Price:   q.Price,
		Signals: []scoring.Signal{},
	}
	for _, rule := range rules {
		points, signals := rule.Score(q)
		a.Score += points
		a.Signals = append(a.Signals, signals...)
	}
	a.RecommendationType, a.Recommendation = scoring.Recommend(a.Score)
	return a
}

// present treats missing and zero values alike, as the market data source
// reports unknown ratios as zero.
func present(v *float64) bool {
	return v != nil && *v != 0
}
