package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Valuation is a position marked to a live price.
type Valuation struct {
	CurrentPrice    decimal.Decimal
	CurrentValue    decimal.Decimal
	CostBasis       decimal.Decimal
	GainLoss        decimal.Decimal
	GainLossPercent *decimal.Decimal // nil when the position is closed or has no cost
}

// Value marks p to price.
func Value(p Position, price decimal.Decimal) Valuation {
	v := Valuation{
		CurrentPrice: price,
		CurrentValue: p.Quantity.Mul(price),
		CostBasis:    p.CostBasis(),
	}
	v.GainLoss = v.CurrentValue.Sub(v.CostBasis)
	v.GainLossPercent = percentOf(v.GainLoss, v.CostBasis)
	return v
}

func percentOf(part, whole decimal.Decimal) *decimal.Decimal {
	if !whole.IsPositive() {
		return nil
	}
	pct := part.Div(whole).Mul(hundred)
	return &pct
}

// Holding pairs a position with its valuation. Valuation is nil when no
// price was available.
type Holding struct {
	Position  Position
	Valuation *Valuation
}

// Performer identifies the best or worst holding.
type Performer struct {
	Ticker          string
	GainLossPercent decimal.Decimal
}

// Summary aggregates open holdings.
type Summary struct {
	TotalInvested        decimal.Decimal
	CurrentValue         decimal.Decimal
	TotalGainLoss        decimal.Decimal
	TotalGainLossPercent *decimal.Decimal
	RealizedGain         decimal.Decimal
	HoldingsCount        int
	BestPerformer        *Performer
	WorstPerformer       *Performer
	// Unpriced lists open holdings valued at cost because no price was available.
	Unpriced []string
}

// Summarize aggregates holdings with quantity > 0. Unpriced holdings count at
// cost so they neither add nor remove gain. Best and worst performers are
// chosen among priced holdings only; ties keep the ticker that sorts first.
func Summarize(holdings []Holding) Summary {
	s := Summary{}

	ordered := make([]Holding, len(holdings))
	copy(ordered, holdings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position.Ticker < ordered[j].Position.Ticker
	})

	for _, h := range ordered {
		s.RealizedGain = s.RealizedGain.Add(h.Position.RealizedGain)
		if !h.Position.Open() {
			continue
		}
		s.HoldingsCount++
		cost := h.Position.CostBasis()
		s.TotalInvested = s.TotalInvested.Add(cost)

		if h.Valuation == nil {
			s.CurrentValue = s.CurrentValue.Add(cost)
			s.Unpriced = append(s.Unpriced, h.Position.Ticker)
			continue
		}
		s.CurrentValue = s.CurrentValue.Add(h.Valuation.CurrentValue)

		if h.Valuation.GainLossPercent == nil {
			continue
		}
		pct := *h.Valuation.GainLossPercent
		if s.BestPerformer == nil || pct.GreaterThan(s.BestPerformer.GainLossPercent) {
			s.BestPerformer = &Performer{Ticker: h.Position.Ticker, GainLossPercent: pct}
		}
		if s.WorstPerformer == nil || pct.LessThan(s.WorstPerformer.GainLossPercent) {
			s.WorstPerformer = &Performer{Ticker: h.Position.Ticker, GainLossPercent: pct}
		}
	}

	s.TotalGainLoss = s.CurrentValue.Sub(s.TotalInvested)
	s.TotalGainLossPercent = percentOf(s.TotalGainLoss, s.TotalInvested)

	return s
}
