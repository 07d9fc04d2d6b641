// Package fundamentals keeps a daily history of valuation and balance-sheet
// figures per instrument and compares them between dates.
package fundamentals

import (
	"time"

	"github.com/aristath/stockwatch/internal/domain"
)

// Snapshot is the fundamentals of one instrument on one day.
type Snapshot struct {
	ID           int64       `json:"id"`
	InstrumentID int64       `json:"stock_id"`
	Ticker       string      `json:"ticker"`
	Date         domain.Date `json:"date"`
	domain.Fundamentals
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricChange is one metric on both dates of a comparison.
type MetricChange struct {
	Date1Value    float64  `json:"date1_value"`
	Date2Value    float64  `json:"date2_value"`
	Change        float64  `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
}

// Comparison lists the metrics present on both dates.
type Comparison struct {
	Ticker  string                  `json:"ticker"`
	Date1   domain.Date             `json:"date1"`
	Date2   domain.Date             `json:"date2"`
	Metrics map[string]MetricChange `json:"metrics"`
}

// comparedMetrics are the figures Compare reports, keyed by their JSON name.
var comparedMetrics = []struct {
	name  string
	value func(domain.Fundamentals) *float64
}{
	{"pl", func(f domain.Fundamentals) *float64 { return f.PE }},
	{"pvp", func(f domain.Fundamentals) *float64 { return f.PB }},
	{"dividend_yield", func(f domain.Fundamentals) *float64 { return f.DividendYield }},
	{"roe", func(f domain.Fundamentals) *float64 { return f.ROE }},
	{"roa", func(f domain.Fundamentals) *float64 { return f.ROA }},
	{"debt_ebitda", func(f domain.Fundamentals) *float64 { return f.DebtEBITDA }},
	{"price", func(f domain.Fundamentals) *float64 { return f.Price }},
}

func compare(ticker string, a, b *Snapshot) *Comparison {
	c := &Comparison{
		Ticker:  ticker,
		Date1:   a.Date,
		Date2:   b.Date,
		Metrics: make(map[string]MetricChange),
	}
	for _, m := range comparedMetrics {
		v1, v2 := m.value(a.Fundamentals), m.value(b.Fundamentals)
		if v1 == nil || v2 == nil {
			continue
		}
		mc := MetricChange{Date1Value: *v1, Date2Value: *v2, Change: *v2 - *v1}
		if *v1 != 0 {
			pct := mc.Change / *v1 * 100
			mc.ChangePercent = &pct
		}
		c.Metrics[m.name] = mc
	}
	return c
}
