package dividends

import (
	"encoding/json"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/shopspring/decimal"
)

// DividendType classifies a shareholder payout.
type DividendType string

const (
	// TypeDividend is a regular cash dividend (dividendo).
	TypeDividend DividendType = "dividendo"
	// TypeJCP is interest on equity (juros sobre capital próprio).
	TypeJCP DividendType = "jcp"
	// TypeBonus is a stock bonus (bonificação).
	TypeBonus DividendType = "bonificacao"
)

// Valid reports whether t is a known payout type.
func (t DividendType) Valid() bool {
	switch t {
	case TypeDividend, TypeJCP, TypeBonus:
		return true
	}
	return false
}

// DividendRecord is a payout received for an instrument. Records are
// independent of the transaction ledger.
type DividendRecord struct {
	ID           int64           `json:"id"`
	InstrumentID int64           `json:"instrument_id"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Type         DividendType    `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Shares       decimal.Decimal `json:"shares"`
	PaymentDate  domain.Date     `json:"payment_date"`
	ExDate       *domain.Date    `json:"ex_date"`
	Notes        *string         `json:"notes"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PerShare is amount / shares, or zero when shares is zero.
func (d DividendRecord) PerShare() decimal.Decimal {
	if d.Shares.IsZero() {
		return decimal.Zero
	}
	return d.Amount.Div(d.Shares)
}

// MarshalJSON adds per_share, rounded to four places.
func (d DividendRecord) MarshalJSON() ([]byte, error) {
	type plain DividendRecord
	return json.Marshal(struct {
		plain
		PerShare decimal.Decimal `json:"per_share"`
	}{plain(d), d.PerShare().Round(4)})
}
