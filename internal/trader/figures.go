package trader

import (
	"errors"
	"fmt"

	"ladderbot/internal/account"
)

// ErrNotEligible marks a submission rejected by the eligibility gate or a
// directional guard. Callers branch on it with errors.Is.
var ErrNotEligible = errors.New("submission not eligible")

// Figures are the derived numbers the form and the gate work from. All of
// them fall out of one params + state snapshot pair.
type Figures struct {
	WalletBalance    float64 `json:"wallet_balance"`
	AvailableBalance float64 `json:"available_balance"`
	InUseBalance     float64 `json:"in_use_balance"`
	LastPrice        float64 `json:"last_price"`

	// IsLong means the configured range sits below the market, i.e. a buy
	// ladder. It drives which side's closeable quantity applies.
	IsLong bool `json:"is_long"`

	LongQty        float64 `json:"long_qty"`
	ShortQty       float64 `json:"short_qty"`
	LongCloseable  float64 `json:"long_closeable"`
	ShortCloseable float64 `json:"short_closeable"`

	ToOrderBalance float64 `json:"to_order_balance"`
	QtyToClose     float64 `json:"qty_to_close"`
	ToOrderQty     float64 `json:"to_order_qty"`
}

// ComputeFigures derives the eligibility inputs from one snapshot.
func ComputeFigures(p Params, state account.State) Figures {
	f := Figures{
		WalletBalance:    state.Balance.WalletBalance,
		AvailableBalance: state.Balance.AvailableBalance,
		LastPrice:        state.LastPrice,
		IsLong:           p.MaxPrice < state.LastPrice,
		LongQty:          state.PositionQty("Buy"),
		ShortQty:         state.PositionQty("Sell"),
		LongCloseable:    state.CloseableQty("Buy"),
		ShortCloseable:   state.CloseableQty("Sell"),
	}
	f.InUseBalance = f.WalletBalance - f.AvailableBalance
	f.ToOrderBalance = f.WalletBalance * p.Percent / 100
	if f.IsLong {
		// 买单梯子只能平掉空头仓位。
		f.QtyToClose = f.ShortCloseable
	} else {
		f.QtyToClose = f.LongCloseable
	}
	f.ToOrderQty = f.QtyToClose * p.Percent / 100
	return f
}

// eligible is the gate every submission and preview passes first. It mirrors
// the mode split: reduce-only caps on closeable quantity, budget mode caps on
// available balance.
func eligible(p Params, f Figures) error {
	switch {
	case p.APIKey == "" || p.Secret == "":
		return fmt.Errorf("%w: credentials missing", ErrNotEligible)
	case p.MinPrice <= 0 || p.MaxPrice <= 0:
		return fmt.Errorf("%w: price range not set", ErrNotEligible)
	case p.MinPrice > p.MaxPrice:
		return fmt.Errorf("%w: min_price above max_price", ErrNotEligible)
	case p.SpreadCount < 1:
		return fmt.Errorf("%w: spread_count must be at least 1", ErrNotEligible)
	case p.Percent <= 0:
		return fmt.Errorf("%w: percent must be positive", ErrNotEligible)
	}
	if p.ReduceOnly {
		if f.ToOrderQty <= 0 || f.QtyToClose <= 0 {
			return fmt.Errorf("%w: nothing to close", ErrNotEligible)
		}
		if f.ToOrderQty > f.QtyToClose {
			return fmt.Errorf("%w: close qty %.6f exceeds closeable %.6f", ErrNotEligible, f.ToOrderQty, f.QtyToClose)
		}
		return nil
	}
	if f.ToOrderBalance <= 0 || f.AvailableBalance <= 0 {
		return fmt.Errorf("%w: no balance to spend", ErrNotEligible)
	}
	if f.ToOrderBalance > f.AvailableBalance {
		return fmt.Errorf("%w: spend %.2f exceeds available %.2f", ErrNotEligible, f.ToOrderBalance, f.AvailableBalance)
	}
	return nil
}

// directionalGuard checks that the ladder sits on the right side of the
// market for the requested direction, and clear of the stop-loss.
func directionalGuard(side string, p Params, lastPrice float64) error {
	switch side {
	case "Buy":
		if p.MaxPrice >= lastPrice || p.MinPrice >= lastPrice {
			return fmt.Errorf("%w: long ladder must sit below market %.2f", ErrNotEligible, lastPrice)
		}
		if p.StopLoss > 0 && p.MinPrice <= p.StopLoss {
			return fmt.Errorf("%w: min_price must stay above stop_loss", ErrNotEligible)
		}
	case "Sell":
		if p.MaxPrice <= lastPrice || p.MinPrice <= lastPrice {
			return fmt.Errorf("%w: short ladder must sit above market %.2f", ErrNotEligible, lastPrice)
		}
		if p.StopLoss > 0 && p.MaxPrice >= p.StopLoss {
			return fmt.Errorf("%w: max_price must stay below stop_loss", ErrNotEligible)
		}
	default:
		return fmt.Errorf("unknown side %q", side)
	}
	return nil
}
