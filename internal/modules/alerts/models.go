// Package alerts watches quotes for user-defined price and indicator
// conditions and keeps a history of triggers.
package alerts

import (
	"time"
)

// AlertType is the quote field an alert watches.
type AlertType string

const (
	TypePrice         AlertType = "price"
	TypeChangePercent AlertType = "change_percent"
	TypePERatio       AlertType = "pe_ratio"
	TypeDividendYield AlertType = "dividend_yield"
)

// Operator compares the watched value with the target.
type Operator string

const (
	OperatorAbove      Operator = "above"
	OperatorBelow      Operator = "below"
	OperatorChangeUp   Operator = "change_up"
	OperatorChangeDown Operator = "change_down"
)

// DefaultCooldownHours separates two triggers of the same alert.
const DefaultCooldownHours = 24

// Condition is the trigger rule of an alert.
type Condition struct {
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// Alert is a watch on one instrument.
type Alert struct {
	ID              int64      `json:"id"`
	InstrumentID    int64      `json:"instrument_id"`
	Ticker          string     `json:"ticker"`
	Name            string     `json:"name"`
	Type            AlertType  `json:"type"`
	Condition       Condition  `json:"condition"`
	IsActive        bool       `json:"is_active"`
	CooldownHours   int        `json:"cooldown_hours"`
	TriggerCount    int        `json:"trigger_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	Notes           *string    `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CoolingDown reports whether the alert fired less than CooldownHours before now.
func (a Alert) CoolingDown(now time.Time) bool {
	if a.LastTriggeredAt == nil || a.CooldownHours <= 0 {
		return false
	}
	return now.Before(a.LastTriggeredAt.Add(time.Duration(a.CooldownHours) * time.Hour))
}

// HistoryEntry records one trigger.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	AlertID      int64     `json:"alert_id"`
	Ticker       string    `json:"ticker"`
	TriggeredAt  time.Time `json:"triggered_at"`
	TriggerValue float64   `json:"trigger_value"`
	TargetValue  float64   `json:"target_value"`
	Message      string    `json:"message"`
}

// OperatorInfo describes an operator for clients building alert forms.
type OperatorInfo struct {
	Value       Operator `json:"value"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

// TypeInfo describes an alert type.
type TypeInfo struct {
	Type             AlertType      `json:"type"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Tip              string         `json:"tip"`
	Operators        []OperatorInfo `json:"operators"`
	ValueLabel       string         `json:"value_label"`
	ValuePlaceholder string         `json:"value_placeholder"`
}

// Catalogue lists the supported alert types.
var Catalogue = []TypeInfo{
	{
		Type:        TypePrice,
		Name:        "Preço Alvo",
		Description: "Receba um alerta quando a ação atingir um preço específico.",
		Tip:         "Use para definir um preço de compra ou venda que você considera ideal.",
		Operators: []OperatorInfo{
			{OperatorAbove, "Acima de", "Quando subir acima do valor"},
			{OperatorBelow, "Abaixo de", "Quando cair abaixo do valor"},
		},
		ValueLabel:       "Preço (R$)",
		ValuePlaceholder: "Ex: 45.00",
	},
	{
		Type:        TypeChangePercent,
		Name:        "Variação Diária",
		Description: "Receba um alerta quando a ação variar muito em um dia.",
		Tip:         "Útil para detectar quedas bruscas ou altas exageradas.",
		Operators: []OperatorInfo{
			{OperatorChangeUp, "Subir mais de", "Alta acima do percentual"},
			{OperatorChangeDown, "Cair mais de", "Queda acima do percentual"},
		},
		ValueLabel:       "Variação (%)",
		ValuePlaceholder: "Ex: 5",
	},
	{
		Type:        TypePERatio,
		Name:        "P/L (Preço/Lucro)",
		Description: "Receba um alerta quando o indicador P/L atingir um valor.",
		Tip:         "P/L abaixo de 15 geralmente indica ação barata. Acima de 25 pode estar cara.",
		Operators: []OperatorInfo{
			{OperatorBelow, "Abaixo de", "P/L ficou barato"},
			{OperatorAbove, "Acima de", "P/L ficou caro"},
		},
		ValueLabel:       "P/L",
		ValuePlaceholder: "Ex: 15",
	},
	{
		Type:        TypeDividendYield,
		Name:        "Dividend Yield",
		Description: "Receba um alerta quando o DY atingir um valor.",
		Tip:         "DY acima de 6% é considerado excelente para renda passiva.",
		Operators: []OperatorInfo{
			{OperatorAbove, "Acima de", "DY ficou atrativo"},
			{OperatorBelow, "Abaixo de", "DY caiu"},
		},
		ValueLabel:       "DY (%)",
		ValuePlaceholder: "Ex: 6",
	},
}

// operatorsFor returns the operators valid for t, or nil for unknown types.
func operatorsFor(t AlertType) []OperatorInfo {
	for _, info := range Catalogue {
		if info.Type == t {
			return info.Operators
		}
	}
	return nil
}
