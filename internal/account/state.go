// Package account owns the local view of exchange account state and keeps it
// consistent across REST polls and push-feed deltas.
package account

import (
	"ladderbot/internal/bybit"
)

// State is the authoritative local account view. It is owned by the
// Synchronizer; everything else reads snapshots.
type State struct {
	Balance   bybit.Balance       `json:"balance"`
	LastPrice float64             `json:"last_price"`
	Orders    []bybit.ActiveOrder `json:"orders"`
	Positions []bybit.Position    `json:"positions"`
}

// clone returns a deep-enough copy: slices are duplicated, elements are
// value types.
func (s State) clone() State {
	out := s
	if len(s.Orders) > 0 {
		out.Orders = append([]bybit.ActiveOrder(nil), s.Orders...)
	}
	if len(s.Positions) > 0 {
		out.Positions = append([]bybit.Position(nil), s.Positions...)
	}
	return out
}

// PositionQty sums position size for one side.
func (s State) PositionQty(side string) float64 {
	total := 0.0
	for _, p := range s.Positions {
		if p.Side == side {
			total += p.Size
		}
	}
	return total
}

// CloseableQty sums free (closeable) quantity for one side.
func (s State) CloseableQty(side string) float64 {
	total := 0.0
	for _, p := range s.Positions {
		if p.Side == side {
			total += p.FreeQty
		}
	}
	return total
}
