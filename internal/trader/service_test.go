package trader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"ladderbot/internal/account"
	"ladderbot/internal/bybit"
)

type fakePlacer struct {
	mu          sync.Mutex
	orders      []bybit.OrderRequest
	stops       []bybit.ConditionalOrderRequest
	cancels     []string
	failAtPrice float64
	failCancel  string
}

func (f *fakePlacer) PlaceOrder(_ context.Context, _ bybit.Auth, req bybit.OrderRequest) (*bybit.ActiveOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if f.failAtPrice != 0 && req.Price == f.failAtPrice {
		return nil, errors.New("rejected")
	}
	return &bybit.ActiveOrder{OrderID: "id", Price: req.Price}, nil
}

func (f *fakePlacer) PlaceConditionalOrder(_ context.Context, _ bybit.Auth, req bybit.ConditionalOrderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, req)
	return nil
}

func (f *fakePlacer) CancelOrder(_ context.Context, _ bybit.Auth, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, symbol+"/"+orderID)
	if orderID == f.failCancel {
		return errors.New("not found")
	}
	return nil
}

type fakeSyncer struct {
	state          account.State
	rekeys         []account.Key
	orderRefreshes int
	posRefreshes   int
}

func (f *fakeSyncer) Snapshot() account.State { return f.state }
func (f *fakeSyncer) Rekey(key account.Key)   { f.rekeys = append(f.rekeys, key) }
func (f *fakeSyncer) RefreshOrders()          { f.orderRefreshes++ }
func (f *fakeSyncer) RefreshPositions()       { f.posRefreshes++ }

func btcIncrements(string) (float64, float64) { return 0.5, 0.001 }

func budgetParams() Params {
	return Params{
		APIKey:      "k",
		Secret:      "s",
		Symbol:      "BTCUSDT",
		Leverage:    7,
		MinPrice:    100,
		MaxPrice:    102,
		StopLoss:    95,
		SpreadCount: 3,
		Percent:     10,
		PostOnly:    true,
	}
}

func fundedState() account.State {
	return account.State{
		Balance:   bybit.Balance{WalletBalance: 1000, AvailableBalance: 900},
		LastPrice: 110,
	}
}

func TestEligible(t *testing.T) {
	base := budgetParams()
	funded := ComputeFigures(base, fundedState())

	t.Run("passes when funded", func(t *testing.T) {
		assert.NoError(t, eligible(base, funded))
	})

	bad := []struct {
		name   string
		mutate func(*Params)
	}{
		{"missing api key", func(p *Params) { p.APIKey = "" }},
		{"missing secret", func(p *Params) { p.Secret = "" }},
		{"min price unset", func(p *Params) { p.MinPrice = 0 }},
		{"max price unset", func(p *Params) { p.MaxPrice = 0 }},
		{"inverted range", func(p *Params) { p.MinPrice = 103 }},
		{"zero spread count", func(p *Params) { p.SpreadCount = 0 }},
		{"zero percent", func(p *Params) { p.Percent = 0 }},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			err := eligible(p, ComputeFigures(p, fundedState()))
			assert.ErrorIs(t, err, ErrNotEligible)
		})
	}

	t.Run("budget above available", func(t *testing.T) {
		p := base
		p.Percent = 95 // 950 > 900 available
		err := eligible(p, ComputeFigures(p, fundedState()))
		assert.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("reduce only without position", func(t *testing.T) {
		p := base
		p.ReduceOnly = true
		err := eligible(p, ComputeFigures(p, fundedState()))
		assert.ErrorIs(t, err, ErrNotEligible)
	})
}

func TestComputeFigures(t *testing.T) {
	state := fundedState()
	state.Positions = []bybit.Position{
		{Symbol: "BTCUSDT", Side: "Buy", Size: 2, FreeQty: 1.5},
		{Symbol: "BTCUSDT", Side: "Sell", Size: 0.8, FreeQty: 0.3},
	}
	p := budgetParams()

	f := ComputeFigures(p, state)
	assert.True(t, f.IsLong, "range below market is a long setup")
	assert.Equal(t, 100.0, f.InUseBalance)
	assert.Equal(t, 100.0, f.ToOrderBalance)
	assert.Equal(t, 0.3, f.QtyToClose, "long setup closes the short side")
	assert.InDelta(t, 0.03, f.ToOrderQty, 1e-9)

	p.MinPrice, p.MaxPrice = 120, 125
	f = ComputeFigures(p, state)
	assert.False(t, f.IsLong)
	assert.Equal(t, 1.5, f.QtyToClose, "short setup closes the long side")
}

func TestDirectionalGuard(t *testing.T) {
	p := budgetParams()

	assert.NoError(t, directionalGuard("Buy", p, 110))
	assert.ErrorIs(t, directionalGuard("Buy", p, 101), ErrNotEligible, "ladder straddles market")
	assert.ErrorIs(t, directionalGuard("Buy", p, 99), ErrNotEligible, "ladder above market")

	p.StopLoss = 100.5
	assert.ErrorIs(t, directionalGuard("Buy", p, 110), ErrNotEligible, "stop loss above min price")

	short := budgetParams()
	short.MinPrice, short.MaxPrice, short.StopLoss = 120, 122, 125
	assert.NoError(t, directionalGuard("Sell", short, 110))
	assert.ErrorIs(t, directionalGuard("Sell", short, 121), ErrNotEligible)
	short.StopLoss = 121
	assert.ErrorIs(t, directionalGuard("Sell", short, 110), ErrNotEligible, "stop loss below max price")

	assert.Error(t, directionalGuard("Hold", p, 110))
}

func TestSubmitPlacesLadderAndStop(t *testing.T) {
	placer := &fakePlacer{}
	syncer := &fakeSyncer{state: fundedState()}
	s := NewService(placer, syncer, btcIncrements, budgetParams())

	levels, err := s.Submit(context.Background(), "Buy")
	assert.NoError(t, err)
	assert.Len(t, levels, 3)

	assert.Len(t, placer.orders, 3)
	prices := map[float64]bool{}
	for _, o := range placer.orders {
		prices[o.Price] = true
		assert.Equal(t, "BTCUSDT", o.Symbol)
		assert.Equal(t, "Buy", o.Side)
		assert.Equal(t, "Limit", o.OrderType)
		assert.Equal(t, "PostOnly", o.TimeInForce)
		assert.False(t, o.ReduceOnly)
	}
	assert.Equal(t, map[float64]bool{100: true, 101: true, 102: true}, prices)

	// One covering stop: opposite side, market, sized to the batch total.
	assert.Len(t, placer.stops, 1)
	stop := placer.stops[0]
	assert.Equal(t, "Sell", stop.Side)
	assert.Equal(t, "Market", stop.OrderType)
	assert.Equal(t, 100.0, stop.BasePrice)
	assert.Equal(t, 95.0, stop.StopPx)
	assert.True(t, stop.ReduceOnly)
	assert.InDelta(t, 2.333+2.31+2.288, stop.Qty, 1e-9)

	assert.Equal(t, 1, syncer.orderRefreshes)
	assert.Equal(t, 1, syncer.posRefreshes)
}

func TestSubmitPartialFailure(t *testing.T) {
	placer := &fakePlacer{failAtPrice: 101}
	syncer := &fakeSyncer{state: fundedState()}
	s := NewService(placer, syncer, btcIncrements, budgetParams())

	_, err := s.Submit(context.Background(), "Buy")
	assert.Error(t, err)
	// Every level is still attempted; there is no rollback and no stop order.
	assert.Len(t, placer.orders, 3)
	assert.Empty(t, placer.stops)
	assert.Equal(t, 1, syncer.orderRefreshes, "state re-polled even on failure")
}

func TestSubmitGuardBlocksWithoutCalls(t *testing.T) {
	placer := &fakePlacer{}
	state := fundedState()
	state.LastPrice = 99 // market below the whole range
	syncer := &fakeSyncer{state: state}
	s := NewService(placer, syncer, btcIncrements, budgetParams())

	_, err := s.Submit(context.Background(), "Buy")
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Empty(t, placer.orders)
	assert.Zero(t, syncer.orderRefreshes)
}

func TestSubmitReduceOnlySkipsStop(t *testing.T) {
	placer := &fakePlacer{}
	state := fundedState()
	state.Positions = []bybit.Position{{Symbol: "BTCUSDT", Side: "Sell", Size: 0.5, FreeQty: 0.3}}
	syncer := &fakeSyncer{state: state}

	p := budgetParams()
	p.ReduceOnly = true
	p.Percent = 100
	s := NewService(placer, syncer, btcIncrements, p)

	levels, err := s.Submit(context.Background(), "Buy")
	assert.NoError(t, err)
	assert.Len(t, levels, 3)
	for _, o := range placer.orders {
		assert.True(t, o.ReduceOnly)
		assert.InDelta(t, 0.1, o.Qty, 1e-9)
	}
	assert.Empty(t, placer.stops, "reduce-only submissions carry no stop order")
}

func TestCancel(t *testing.T) {
	placer := &fakePlacer{}
	syncer := &fakeSyncer{state: account.State{
		Orders: []bybit.ActiveOrder{{OrderID: "a", Symbol: "ETHUSDT"}},
	}}
	s := NewService(placer, syncer, btcIncrements, budgetParams())

	t.Run("requires confirmation", func(t *testing.T) {
		err := s.Cancel(context.Background(), []string{"a"}, false)
		assert.ErrorIs(t, err, ErrNotConfirmed)
		assert.Empty(t, placer.cancels)
	})

	t.Run("uses the order's own symbol", func(t *testing.T) {
		err := s.Cancel(context.Background(), []string{"a", "b"}, true)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"ETHUSDT/a", "BTCUSDT/b"}, placer.cancels)
		assert.Equal(t, 1, syncer.orderRefreshes)
	})

	t.Run("waits for every cancel on failure", func(t *testing.T) {
		placer.cancels = nil
		placer.failCancel = "a"
		err := s.Cancel(context.Background(), []string{"a", "b", "c"}, true)
		assert.Error(t, err)
		assert.Len(t, placer.cancels, 3)
	})
}

func TestSetParamsRekeys(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewService(&fakePlacer{}, syncer, btcIncrements, Params{})

	p := budgetParams()
	s.SetParams(p)
	assert.Len(t, syncer.rekeys, 1)
	assert.Equal(t, account.Key{APIKey: "k", Secret: "s", Symbol: "BTCUSDT"}, syncer.rekeys[0])

	// A non-credential edit must not re-scope.
	p.Percent = 25
	s.SetParams(p)
	assert.Len(t, syncer.rekeys, 1)

	p.Symbol = "ETHUSDT"
	s.SetParams(p)
	assert.Len(t, syncer.rekeys, 2)
}

func TestObservePriceSeedsRange(t *testing.T) {
	s := NewService(&fakePlacer{}, &fakeSyncer{}, btcIncrements, Params{})

	s.ObservePrice(123.5)
	p := s.Params()
	assert.Equal(t, 123.5, p.MinPrice)
	assert.Equal(t, 123.5, p.MaxPrice)

	// Later ticks never overwrite a set range.
	s.ObservePrice(130)
	p = s.Params()
	assert.Equal(t, 123.5, p.MinPrice)
	assert.Equal(t, 123.5, p.MaxPrice)
}

func TestPreview(t *testing.T) {
	syncer := &fakeSyncer{state: fundedState()}
	s := NewService(&fakePlacer{}, syncer, btcIncrements, budgetParams())

	pv := s.Preview()
	assert.Empty(t, pv.Reason)
	assert.Len(t, pv.Levels, 3)
	assert.InDelta(t, 6.931, pv.SumQty, 1e-9)

	p := s.Params()
	p.Percent = 0
	s.SetParams(p)
	pv = s.Preview()
	assert.NotEmpty(t, pv.Reason)
	assert.Empty(t, pv.Levels)
}

func TestParamsRedacted(t *testing.T) {
	p := budgetParams()
	assert.Equal(t, "******", p.Redacted().Secret)
	assert.Equal(t, "s", p.Secret, "redaction works on a copy")
	assert.Empty(t, Params{}.Redacted().Secret)
}
