// Package formulas holds the price-series indicators served with quote history.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Returns converts prices to simple period returns. Pairs with a zero
// starting price are skipped.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns
}

// AnnualizedVolatility is the sample standard deviation of daily returns
// scaled by sqrt(252), in percent. Nil with fewer than two returns.
func AnnualizedVolatility(closes []float64) *float64 {
	returns := Returns(closes)
	if len(returns) < 2 {
		return nil
	}
	v := stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear) * 100
	return &v
}
