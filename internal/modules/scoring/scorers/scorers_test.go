package scorers

import (
	"testing"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestAnalyze_BuyRecommendation(t *testing.T) {
	q := domain.Quote{
		Ticker:           "BBAS3",
		Price:            21,
		FiftyTwoWeekLow:  f(20),
		FiftyTwoWeekHigh: f(30),
		PERatio:          f(4.2),
		DividendYield:    f(9.8),
		ChangePercent:    -3.5,
	}

	a := Analyze(q)
	assert.Equal(t, 65, a.Score)
	assert.Equal(t, scoring.RecommendationBuy, a.RecommendationType)
	assert.Equal(t, "Pode ser interessante comprar", a.Recommendation)

	require.Len(t, a.Signals, 4)
	assert.Equal(t, scoring.Signal{Type: scoring.SignalPositive, Message: "Próximo da mínima de 52 semanas (R$ 20.00)"}, a.Signals[0])
	assert.Equal(t, "P/L baixo (4.2) - possível oportunidade", a.Signals[1].Message)
	assert.Equal(t, "Dividend Yield atrativo (9.8%)", a.Signals[2].Message)
	assert.Equal(t, scoring.Signal{Type: scoring.SignalInfo, Message: "Queda de 3.5% hoje - verificar motivo"}, a.Signals[3])
}

func TestAnalyze_HoldRecommendation(t *testing.T) {
	q := domain.Quote{
		Ticker:           "MGLU3",
		Price:            29,
		FiftyTwoWeekLow:  f(10),
		FiftyTwoWeekHigh: f(30),
		PERatio:          f(40),
		ChangePercent:    4,
	}

	a := Analyze(q)
	assert.Equal(t, -25, a.Score)
	assert.Equal(t, scoring.RecommendationHold, a.RecommendationType)
	require.Len(t, a.Signals, 3)
	assert.Equal(t, scoring.SignalWarning, a.Signals[0].Type)
	assert.Equal(t, "Alta de 4.0% hoje", a.Signals[2].Message)
}

func TestAnalyze_NeutralWithoutData(t *testing.T) {
	a := Analyze(domain.Quote{Ticker: "XPTO3", Price: 10})
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, scoring.RecommendationNeutral, a.RecommendationType)
	assert.NotNil(t, a.Signals)
	assert.Empty(t, a.Signals)
}

func TestAnalyze_IsPure(t *testing.T) {
	q := domain.Quote{Ticker: "ITUB4", Price: 30, PERatio: f(12), DividendYield: f(4)}
	first := Analyze(q)
	second := Analyze(q)
	assert.Equal(t, first, second)
	assert.Equal(t, 15, first.Score)
}

func TestRangeScorer(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		low, high float64
		want      int
	}{
		{"near low", 12, 10, 20, 20},
		{"middle", 15, 10, 20, 0},
		{"near high", 19, 10, 20, -10},
		{"flat range", 10, 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := RangeScorer{}.Score(domain.Quote{Price: tt.price, FiftyTwoWeekLow: f(tt.low), FiftyTwoWeekHigh: f(tt.high)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValuationScorer(t *testing.T) {
	tests := []struct {
		pe   float64
		want int
	}{
		{5, 25}, {8, 10}, {14.9, 10}, {15, 0}, {25, 0}, {25.1, -15}, {-3, 25},
	}
	for _, tt := range tests {
		got, _ := ValuationScorer{}.Score(domain.Quote{PERatio: f(tt.pe)})
		assert.Equal(t, tt.want, got, "pe %v", tt.pe)
	}
}

func TestYieldScorer(t *testing.T) {
	tests := []struct {
		dy   float64
		want int
	}{
		{7, 20}, {6, 5}, {3.1, 5}, {3, 0}, {0, 0},
	}
	for _, tt := range tests {
		got, _ := YieldScorer{}.Score(domain.Quote{DividendYield: f(tt.dy)})
		assert.Equal(t, tt.want, got, "dy %v", tt.dy)
	}
}

func TestRecommend(t *testing.T) {
	r, _ := scoring.Recommend(30)
	assert.Equal(t, scoring.RecommendationBuy, r)
	r, _ = scoring.Recommend(29)
	assert.Equal(t, scoring.RecommendationNeutral, r)
	r, _ = scoring.Recommend(-20)
	assert.Equal(t, scoring.RecommendationHold, r)
	r, _ = scoring.Recommend(-19)
	assert.Equal(t, scoring.RecommendationNeutral, r)
}
