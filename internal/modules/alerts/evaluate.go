package alerts

import (
	"fmt"
	"math"

	"github.com/aristath/stockwatch/internal/domain"
)

// Evaluation is the outcome of checking one alert against a quote.
type Evaluation struct {
	Triggered bool
	// Current is the watched value, nil when the quote lacks it.
	Current *float64
	Message string
}

// Evaluate checks a against q. Targets are inclusive. P/E and dividend yield
// alerts never trigger when the quote has no value for them.
func Evaluate(a Alert, q domain.Quote) Evaluation {
	current := watched(a.Type, q)
	if current == nil {
		return Evaluation{}
	}

	v, target := *current, a.Condition.Value
	var hit bool
	switch a.Condition.Operator {
	case OperatorAbove:
		hit = v >= target
	case OperatorBelow:
		hit = v <= target
	case OperatorChangeUp:
		hit = v >= target
	case OperatorChangeDown:
		hit = v <= -target
	}

	e := Evaluation{Triggered: hit, Current: current}
	if hit {
		e.Message = message(a, v)
	}
	return e
}

func watched(t AlertType, q domain.Quote) *float64 {
	switch t {
	case TypePrice:
		if q.Price <= 0 {
			return nil
		}
		v := q.Price
		return &v
	case TypeChangePercent:
		v := q.ChangePercent
		return &v
	case TypePERatio:
		return nonZero(q.PERatio)
	case TypeDividendYield:
		return nonZero(q.DividendYield)
	}
	return nil
}

func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}

func message(a Alert, current float64) string {
	target := a.Condition.Value
	direction := "caiu abaixo de"
	if a.Condition.Operator == OperatorAbove {
		direction = "subiu acima de"
	}

	switch a.Type {
	case TypePrice:
		return fmt.Sprintf("%s %s R$ %.2f! Preço atual: R$ %.2f", a.Ticker, direction, target, current)
	case TypeChangePercent:
		moved := "caiu"
		if a.Condition.Operator == OperatorChangeUp {
			moved = "subiu"
		}
		return fmt.Sprintf("%s %s %.2f%% hoje! Alerta configurado para %g%%", a.Ticker, moved, math.Abs(current), target)
	case TypePERatio:
		return fmt.Sprintf("P/L de %s %s %g! P/L atual: %.1f", a.Ticker, direction, target, current)
	case TypeDividendYield:
		return fmt.Sprintf("Dividend Yield de %s %s %g%%! DY atual: %.1f%%", a.Ticker, direction, target, current)
	}
	return "Alerta disparado para " + a.Ticker
}
