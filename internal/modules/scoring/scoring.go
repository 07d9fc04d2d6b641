// Package scoring holds the rule-based quote analysis types.
package scoring

import "github.com/aristath/stockwatch/internal/domain"

// SignalType classifies an analysis signal.
type SignalType string

const (
	SignalPositive SignalType = "positive"
	SignalNeutral  SignalType = "neutral"
	SignalWarning  SignalType = "warning"
	SignalInfo     SignalType = "info"
)

// Signal is one observation contributing to an analysis.
type Signal struct {
	Type    SignalType `json:"type"`
	Message string     `json:"message"`
}

// Recommendation is the conclusion drawn from a score.
type Recommendation string

const (
	RecommendationBuy     Recommendation = "buy"
	RecommendationHold    Recommendation = "hold"
	RecommendationNeutral Recommendation = "neutral"
)

// Score thresholds for recommendations.
const (
	BuyThreshold  = 30
	HoldThreshold = -20
)

// Recommend maps a score to a recommendation and its description.
func Recommend(score int) (Recommendation, string) {
	switch {
	case score >= BuyThreshold:
		return RecommendationBuy, "Pode ser interessante comprar"
	case score <= HoldThreshold:
		return RecommendationHold, "Cautela - avaliar melhor"
	default:
		return RecommendationNeutral, "Neutro - acompanhar"
	}
}

// Analysis is the scored view of a quote snapshot.
type Analysis struct {
	Ticker             string         `json:"ticker"`
	Price              float64        `json:"price"`
	Score              int            `json:"score"`
	Signals            []Signal       `json:"signals"`
	Recommendation     string         `json:"recommendation"`
	RecommendationType Recommendation `json:"recommendation_type"`
}

// Scorer contributes points and signals for one aspect of a quote.
type Scorer interface {
	Score(q domain.Quote) (int, []Signal)
}
