package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holding(ticker, qty, avg string, price *string) Holding {
	p := Position{Ticker: ticker, Quantity: d(qty), AveragePrice: d(avg)}
	h := Holding{Position: p}
	if price != nil {
		v := Value(p, d(*price))
		h.Valuation = &v
	}
	return h
}

func strp(s string) *string { return &s }

func TestValue_Loss(t *testing.T) {
	v := Value(Position{Quantity: d("50"), AveragePrice: d("20")}, d("15"))
	assertDecimal(t, "750", v.CurrentValue)
	assertDecimal(t, "1000", v.CostBasis)
	assertDecimal(t, "-250", v.GainLoss)
	require.NotNil(t, v.GainLossPercent)
	assertDecimal(t, "-25", *v.GainLossPercent)
}

func TestValue_ZeroCostHasNoPercent(t *testing.T) {
	v := Value(Position{Quantity: d("10"), AveragePrice: d("0")}, d("3"))
	assertDecimal(t, "30", v.GainLoss)
	assert.Nil(t, v.GainLossPercent)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Holding{
		holding("AAAA3", "10", "10", strp("12")),  // +20%
		holding("BBBB4", "20", "5", strp("4")),    // -20%
		holding("CCCC3", "0", "0", strp("50")),    // closed, ignored
		holding("DDDD3", "5", "100", nil),         // unpriced, counted at cost
		holding("EEEE3", "1", "10", strp("10.5")), // +5%
	})

	assert.Equal(t, 4, s.HoldingsCount)
	assertDecimal(t, "710", s.TotalInvested)
	assertDecimal(t, "710.5", s.CurrentValue)
	assertDecimal(t, "0.5", s.TotalGainLoss)
	require.NotNil(t, s.BestPerformer)
	require.NotNil(t, s.WorstPerformer)
	assert.Equal(t, "AAAA3", s.BestPerformer.Ticker)
	assert.Equal(t, "BBBB4", s.WorstPerformer.Ticker)
	assert.Equal(t, []string{"DDDD3"}, s.Unpriced)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.HoldingsCount)
	assert.True(t, s.CurrentValue.IsZero())
	assert.Nil(t, s.TotalGainLossPercent)
	assert.Nil(t, s.BestPerformer)
	assert.Nil(t, s.WorstPerformer)
}

func TestSummarize_SingleHoldingIsBothBestAndWorst(t *testing.T) {
	s := Summarize([]Holding{holding("WEGE3", "100", "35.5", strp("40"))})
	require.NotNil(t, s.BestPerformer)
	assert.Equal(t, "WEGE3", s.BestPerformer.Ticker)
	assert.Equal(t, "WEGE3", s.WorstPerformer.Ticker)
}
