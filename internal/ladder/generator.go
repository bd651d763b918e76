// Package ladder turns a price range, a budget, and a spread count into a
// discretized sequence of limit-order intents.
package ladder

import "github.com/shopspring/decimal"

// Params are the generator inputs. Budget is a currency amount (already
// leverage-adjusted) in budget mode, or a quantity to close in reduce-only
// mode. Direction is not a parameter: the same ladder serves both sides.
type Params struct {
	MinPrice    float64
	MaxPrice    float64
	SpreadCount int
	Budget      float64
	StopLoss    float64
	ReduceOnly  bool

	PriceIncrement float64
	QtyIncrement   float64
}

// Level is one order intent. Immutable once produced.
type Level struct {
	Price      float64 `json:"price"`
	Qty        float64 `json:"qty"`
	Value      float64 `json:"value"`
	StopLoss   float64 `json:"stop_loss"`
	ReduceOnly bool    `json:"reduce_only"`
}

// Generate walks the price range in increments and emits levels until the
// running total (order value in budget mode, quantity in reduce-only mode)
// would exceed the budget. Quantities are rounded to the quantity increment
// BEFORE the total check, so the cap holds for the sizes actually submitted,
// not the theoretical ones. Pure function, replayable.
func Generate(p Params) []Level {
	if p.SpreadCount < 1 || p.Budget <= 0 ||
		p.MinPrice <= 0 || p.MinPrice >= p.MaxPrice ||
		p.PriceIncrement <= 0 || p.QtyIncrement <= 0 {
		return nil
	}

	minPrice := decimal.NewFromFloat(p.MinPrice)
	maxPrice := decimal.NewFromFloat(p.MaxPrice)
	priceInc := decimal.NewFromFloat(p.PriceIncrement)
	qtyInc := decimal.NewFromFloat(p.QtyIncrement)
	budget := decimal.NewFromFloat(p.Budget)

	step := decimal.Zero
	if p.SpreadCount > 1 {
		raw := maxPrice.Sub(minPrice).Div(decimal.NewFromInt(int64(p.SpreadCount - 1)))
		step = roundToIncrement(raw, priceInc)
		if step.LessThan(priceInc) {
			step = priceInc
		}
	}

	perStep := budget.Div(decimal.NewFromInt(int64(p.SpreadCount)))

	var levels []Level
	total := decimal.Zero
	for price := minPrice; price.LessThanOrEqual(maxPrice) && total.LessThanOrEqual(budget); price = price.Add(step) {
		rawQty := perStep
		if !p.ReduceOnly {
			rawQty = perStep.Div(price)
		}
		qty := roundToIncrement(rawQty, qtyInc)

		value := price.Mul(qty)
		if p.ReduceOnly {
			total = total.Add(qty)
		} else {
			total = total.Add(value)
		}

		// A step rounding to zero is skipped, not terminal.
		if !qty.IsZero() && total.LessThanOrEqual(budget) {
			levels = append(levels, Level{
				Price:      toFloat(price),
				Qty:        toFloat(qty),
				Value:      toFloat(value),
				StopLoss:   p.StopLoss,
				ReduceOnly: p.ReduceOnly,
			})
		}
		if step.IsZero() {
			break
		}
	}
	return levels
}

// SumQty returns the ladder's total quantity rounded to the increment, the
// size a covering stop order must carry.
func SumQty(levels []Level, qtyIncrement float64) float64 {
	sum := decimal.Zero
	for _, l := range levels {
		sum = sum.Add(decimal.NewFromFloat(l.Qty))
	}
	if qtyIncrement > 0 {
		sum = roundToIncrement(sum, decimal.NewFromFloat(qtyIncrement))
	}
	return toFloat(sum)
}

// SumValue returns the ladder's total notional value.
func SumValue(levels []Level) float64 {
	sum := decimal.Zero
	for _, l := range levels {
		sum = sum.Add(decimal.NewFromFloat(l.Value))
	}
	return toFloat(sum)
}

func roundToIncrement(v, inc decimal.Decimal) decimal.Decimal {
	return v.Div(inc).Round(0).Mul(inc)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
