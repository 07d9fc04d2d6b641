package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(n int, fn func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	closes := series(30, func(i int) float64 { return float64(i + 1) })

	sma := SMA(closes, 20)
	require.NotNil(t, sma)
	// mean of 11..30
	assert.InDelta(t, 20.5, *sma, 1e-9)

	assert.Nil(t, SMA(closes[:19], 20))
	assert.Nil(t, SMA(closes, 0))
}

func TestRSI(t *testing.T) {
	rising := series(30, func(i int) float64 { return 10 + float64(i) })
	rsi := RSI(rising, 14)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100, *rsi, 1e-9)

	zigzag := series(40, func(i int) float64 {
		if i%2 == 0 {
			return 10
		}
		return 11
	})
	rsi = RSI(zigzag, 14)
	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 30.0)
	assert.Less(t, *rsi, 70.0)

	assert.Nil(t, RSI(rising[:14], 14))
}

func TestAnnualizedVolatility(t *testing.T) {
	flat := series(10, func(int) float64 { return 5 })
	vol := AnnualizedVolatility(flat)
	require.NotNil(t, vol)
	assert.InDelta(t, 0, *vol, 1e-12)

	closes := []float64{100, 110, 99}
	vol = AnnualizedVolatility(closes)
	require.NotNil(t, vol)
	// returns 0.10 and -0.10, sample std 0.1414...
	assert.InDelta(t, math.Sqrt(0.02)*math.Sqrt(252)*100, *vol, 1e-9)

	assert.Nil(t, AnnualizedVolatility([]float64{1, 2}))
}

func TestReturnsAndMean(t *testing.T) {
	assert.Equal(t, []float64{}, Returns([]float64{1}))
	assert.Equal(t, []float64{1}, Returns([]float64{0, 5, 10}))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))
}
