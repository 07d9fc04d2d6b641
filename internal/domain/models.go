// Package domain provides core domain models and types.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// API clients expect JSON numbers for money fields.
	decimal.MarshalJSONWithoutQuotes = true
}

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Valid reports whether t is buy or sell.
func (t TransactionType) Valid() bool {
	return t == TransactionBuy || t == TransactionSell
}

// Instrument is a tracked security identified by its ticker.
type Instrument struct {
	ID              int64            `json:"id"`
	Ticker          string           `json:"ticker"`
	Name            string           `json:"name"`
	Sector          *string          `json:"sector,omitempty"`
	Subsector       *string          `json:"subsector,omitempty"`
	TargetBuyPrice  *decimal.Decimal `json:"target_buy_price,omitempty"`
	TargetSellPrice *decimal.Decimal `json:"target_sell_price,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Transaction is an immutable ledger entry for one instrument.
type Transaction struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrument_id"`
	Ticker       string          `json:"ticker"`
	Type         TransactionType `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fees         decimal.Decimal `json:"fees"`
	Date         Date            `json:"date"`
	Notes        *string         `json:"notes,omitempty"`
	ImportBatch  *string         `json:"import_batch,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TotalValue is quantity × price plus fees on buys, minus fees on sells.
func (t Transaction) TotalValue() decimal.Decimal {
	gross := t.Quantity.Mul(t.Price)
	if t.Type == TransactionSell {
		return gross.Sub(t.Fees)
	}
	return gross.Add(t.Fees)
}

// SameTrade reports whether two transactions describe the same trade:
// equal ticker, date, side, quantity and price.
func (t Transaction) SameTrade(o Transaction) bool {
	return t.Ticker == o.Ticker &&
		t.Date.Equal(o.Date) &&
		t.Type == o.Type &&
		t.Quantity.Equal(o.Quantity) &&
		t.Price.Equal(o.Price)
}

// Quote is a market snapshot for one ticker.
type Quote struct {
	Ticker           string    `json:"ticker" msgpack:"ticker"`
	Name             string    `json:"name,omitempty" msgpack:"name"`
	Price            float64   `json:"price" msgpack:"price"`
	Open             float64   `json:"open,omitempty" msgpack:"open"`
	High             float64   `json:"high,omitempty" msgpack:"high"`
	Low              float64   `json:"low,omitempty" msgpack:"low"`
	Volume           int64     `json:"volume,omitempty" msgpack:"volume"`
	PreviousClose    float64   `json:"previous_close,omitempty" msgpack:"previous_close"`
	Change           float64   `json:"change" msgpack:"change"`
	ChangePercent    float64   `json:"change_percent" msgpack:"change_percent"`
	MarketCap        *float64  `json:"market_cap,omitempty" msgpack:"market_cap"`
	PERatio          *float64  `json:"pe_ratio,omitempty" msgpack:"pe_ratio"`
	DividendYield    *float64  `json:"dividend_yield,omitempty" msgpack:"dividend_yield"`
	FiftyTwoWeekHigh *float64  `json:"fifty_two_week_high,omitempty" msgpack:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64  `json:"fifty_two_week_low,omitempty" msgpack:"fifty_two_week_low"`
	UpdatedAt        time.Time `json:"updated_at" msgpack:"updated_at"`
	Stale            bool      `json:"stale,omitempty" msgpack:"-"` // cached copy served after a provider failure
}

// Fundamentals are valuation, profitability and balance-sheet figures for one
// ticker. Yield, returns and margins are percentages. Nil means the provider
// had no value.
type Fundamentals struct {
	Price         *float64 `json:"price"`
	PE            *float64 `json:"pl"`
	PB            *float64 `json:"pvp"`
	PS            *float64 `json:"psr"`
	EVEBITDA      *float64 `json:"ev_ebitda"`
	DividendYield *float64 `json:"dividend_yield"`
	ROE           *float64 `json:"roe"`
	ROA           *float64 `json:"roa"`
	NetMargin     *float64 `json:"margin_liquid"`
	EBITMargin    *float64 `json:"margin_ebit"`
	DebtEBITDA    *float64 `json:"debt_ebitda"`
	CurrentRatio  *float64 `json:"current_liquidity"`
	MarketCap     *float64 `json:"market_cap"`
	NetRevenue    *float64 `json:"net_revenue"`
	NetProfit     *float64 `json:"net_profit"`
	EBITDA        *float64 `json:"ebitda"`
}

// Empty reports whether no figure is set.
func (f Fundamentals) Empty() bool {
	for _, v := range []*float64{
		f.Price, f.PE, f.PB, f.PS, f.EVEBITDA, f.DividendYield, f.ROE, f.ROA,
		f.NetMargin, f.EBITMargin, f.DebtEBITDA, f.CurrentRatio,
		f.MarketCap, f.NetRevenue, f.NetProfit, f.EBITDA,
	} {
		if v != nil {
			return false
		}
	}
	return true
}

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Date     time.Time `json:"date" msgpack:"date"`
	Open     float64   `json:"open" msgpack:"open"`
	High     float64   `json:"high" msgpack:"high"`
	Low      float64   `json:"low" msgpack:"low"`
	Close    float64   `json:"close" msgpack:"close"`
	AdjClose float64   `json:"adj_close" msgpack:"adj_close"`
	Volume   int64     `json:"volume" msgpack:"volume"`
}
