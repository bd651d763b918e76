// Package trader decides whether a ladder may be submitted and drives the
// actual order placement and cancellation against the exchange.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"ladderbot/internal/account"
	"ladderbot/internal/bybit"
	"ladderbot/internal/ladder"
	"ladderbot/internal/logger"
)

// ErrNotConfirmed rejects a cancel batch issued without the confirmation
// flag.
var ErrNotConfirmed = errors.New("cancel requires confirmation")

// ErrEmptyLadder means the gate passed but rounding produced no levels.
var ErrEmptyLadder = errors.New("ladder has no levels to submit")

// Placer is the order-entry surface of the REST client.
type Placer interface {
	PlaceOrder(ctx context.Context, auth bybit.Auth, req bybit.OrderRequest) (*bybit.ActiveOrder, error)
	PlaceConditionalOrder(ctx context.Context, auth bybit.Auth, req bybit.ConditionalOrderRequest) error
	CancelOrder(ctx context.Context, auth bybit.Auth, symbol, orderID string) error
}

// Syncer is the slice of the account synchronizer the trader needs.
type Syncer interface {
	Snapshot() account.State
	Rekey(key account.Key)
	RefreshOrders()
	RefreshPositions()
}

// IncrementSource resolves the price and quantity increments for a symbol.
type IncrementSource func(symbol string) (priceInc, qtyInc float64)

// Preview is one recomputation of the form-derived state: the figures, the
// gate verdict, and the ladder that a submission would place.
type Preview struct {
	Figures Figures        `json:"figures"`
	Levels  []ladder.Level `json:"levels"`
	SumQty  float64        `json:"sum_qty"`
	SumVal  float64        `json:"sum_value"`
	Reason  string         `json:"reason,omitempty"`
}

// Service holds the live order form and turns it into exchange calls.
type Service struct {
	placer     Placer
	sync       Syncer
	increments IncrementSource

	mu     sync.Mutex
	params Params
}

// NewService wires the trader. initial is the form state from config;
// a zero leverage falls back to the original default of 7.
func NewService(placer Placer, syncer Syncer, increments IncrementSource, initial Params) *Service {
	if initial.Leverage <= 0 {
		initial.Leverage = 7
	}
	return &Service{
		placer:     placer,
		sync:       syncer,
		increments: increments,
		params:     initial,
	}
}

// Params returns a copy of the current form.
func (s *Service) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the form. When credentials or the symbol change, the
// account scope is re-keyed, which resets state and reopens streams.
func (s *Service) SetParams(p Params) {
	if p.Leverage <= 0 {
		p.Leverage = 7
	}
	s.mu.Lock()
	old := s.params
	s.params = p
	s.mu.Unlock()
	if p.key() != old.key() {
		s.sync.Rekey(p.key())
	}
}

// ObservePrice is the synchronizer's last-price callback. The first tick
// seeds an unset price range so the form starts around the market.
func (s *Service) ObservePrice(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params.MinPrice == 0 {
		s.params.MinPrice = price
	}
	if s.params.MaxPrice == 0 {
		s.params.MaxPrice = price
	}
}

// Preview recomputes figures, gate, and ladder from the current snapshot.
// An ineligible form yields an empty ladder and the reason, never an error.
func (s *Service) Preview() Preview {
	return s.PreviewFor(s.Params())
}

// PreviewFor previews an explicit form against the current snapshot without
// touching the stored one. What-if recalculation for the API.
func (s *Service) PreviewFor(p Params) Preview {
	state := s.sync.Snapshot()
	f := ComputeFigures(p, state)
	out := Preview{Figures: f}
	if err := eligible(p, f); err != nil {
		out.Reason = err.Error()
		return out
	}
	_, qtyInc := s.increments(p.Symbol)
	out.Levels = s.buildLadder(p, f)
	out.SumQty = ladder.SumQty(out.Levels, qtyInc)
	out.SumVal = ladder.SumValue(out.Levels)
	return out
}

// Submit places the current ladder as side ("Buy" or "Sell"). Every level
// goes out as an independent limit order; there is no rollback, a partial
// failure leaves the successful subset working on the exchange. When the
// whole batch lands and a stop-loss is set in budget mode, one covering
// conditional market order follows. Orders and positions are re-polled
// either way.
func (s *Service) Submit(ctx context.Context, side string) ([]ladder.Level, error) {
	p := s.Params()
	state := s.sync.Snapshot()
	f := ComputeFigures(p, state)
	if err := eligible(p, f); err != nil {
		return nil, err
	}
	if err := directionalGuard(side, p, state.LastPrice); err != nil {
		return nil, err
	}
	levels := s.buildLadder(p, f)
	if len(levels) == 0 {
		return nil, ErrEmptyLadder
	}

	defer func() {
		s.sync.RefreshOrders()
		s.sync.RefreshPositions()
	}()

	auth := bybit.Auth{APIKey: p.APIKey, Secret: p.Secret}
	tif := p.timeInForce()

	// 并发下单，全部完成后才返回。
	var g errgroup.Group
	for _, level := range levels {
		level := level
		g.Go(func() error {
			_, err := s.placer.PlaceOrder(ctx, auth, bybit.OrderRequest{
				Symbol:      p.Symbol,
				Side:        side,
				OrderType:   "Limit",
				Price:       level.Price,
				Qty:         level.Qty,
				TimeInForce: tif,
				ReduceOnly:  level.ReduceOnly,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warnf("ladder batch for %s %s incomplete: %v", p.Symbol, side, err)
		return levels, fmt.Errorf("placing ladder orders: %w", err)
	}

	if !p.ReduceOnly && p.StopLoss > 0 {
		_, qtyInc := s.increments(p.Symbol)
		err := s.placer.PlaceConditionalOrder(ctx, auth, bybit.ConditionalOrderRequest{
			Symbol:      p.Symbol,
			Side:        oppositeSide(side),
			OrderType:   "Market",
			Qty:         ladder.SumQty(levels, qtyInc),
			BasePrice:   p.MinPrice,
			StopPx:      p.StopLoss,
			TimeInForce: tif,
			ReduceOnly:  true,
		})
		if err != nil {
			return levels, fmt.Errorf("placing stop order: %w", err)
		}
	}

	logger.Infof("placed %d %s orders on %s", len(levels), side, p.Symbol)
	return levels, nil
}

// Cancel issues one cancel per order id, concurrently, and waits for all of
// them. Callers must pass confirmed=true; the flag is the API-level stand-in
// for the original confirmation dialog.
func (s *Service) Cancel(ctx context.Context, orderIDs []string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	p := s.Params()
	if p.APIKey == "" || p.Secret == "" {
		return fmt.Errorf("%w: credentials missing", ErrNotEligible)
	}
	if len(orderIDs) == 0 {
		return nil
	}

	// Symbol comes from the live order when known; orders from a previous
	// symbol selection stay cancellable.
	symbols := make(map[string]string, len(orderIDs))
	for _, o := range s.sync.Snapshot().Orders {
		symbols[o.OrderID] = o.Symbol
	}

	auth := bybit.Auth{APIKey: p.APIKey, Secret: p.Secret}
	var g errgroup.Group
	for _, id := range orderIDs {
		id := id
		symbol := symbols[id]
		if symbol == "" {
			symbol = p.Symbol
		}
		g.Go(func() error {
			return s.placer.CancelOrder(ctx, auth, symbol, id)
		})
	}
	err := g.Wait()
	s.sync.RefreshOrders()
	if err != nil {
		return fmt.Errorf("cancelling orders: %w", err)
	}
	return nil
}

// buildLadder fixes the budget per mode and generates the levels.
func (s *Service) buildLadder(p Params, f Figures) []ladder.Level {
	budget := f.ToOrderBalance * p.Leverage
	if p.ReduceOnly {
		budget = f.ToOrderQty
	}
	priceInc, qtyInc := s.increments(p.Symbol)
	return ladder.Generate(ladder.Params{
		MinPrice:       p.MinPrice,
		MaxPrice:       p.MaxPrice,
		SpreadCount:    p.SpreadCount,
		Budget:         budget,
		StopLoss:       p.StopLoss,
		ReduceOnly:     p.ReduceOnly,
		PriceIncrement: priceInc,
		QtyIncrement:   qtyInc,
	})
}

func oppositeSide(side string) string {
	if side == "Buy" {
		return "Sell"
	}
	return "Buy"
}
