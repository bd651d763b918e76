package account

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sync"

	"ladderbot/internal/bybit"
	"ladderbot/internal/logger"
	"ladderbot/internal/scheduler"
)

// Key identifies one synchronization scope. Changing any part of it starts a
// fresh scope: pending work for the old key must never write into the new
// state.
type Key struct {
	APIKey string
	Secret string
	Symbol string
}

func (k Key) complete() bool {
	return k.APIKey != "" && k.Secret != "" && k.Symbol != ""
}

func (k Key) auth() bybit.Auth {
	return bybit.Auth{APIKey: k.APIKey, Secret: k.Secret}
}

// Fetcher is the REST surface the synchronizer polls.
type Fetcher interface {
	WalletBalance(ctx context.Context, auth bybit.Auth, coin string) (bybit.Balance, error)
	Positions(ctx context.Context, auth bybit.Auth, symbol string) ([]bybit.Position, error)
	AllActiveOrders(ctx context.Context, auth bybit.Auth, symbol string, limit int, orderStatus string) ([]bybit.ActiveOrder, error)
}

// Dialer is the push-feed surface.
type Dialer interface {
	SubscribeTrades(ctx context.Context, symbol string, onPrice func(price float64)) (*bybit.Stream, error)
	SubscribeAccount(ctx context.Context, auth bybit.Auth, onTopic func(topic string, data json.RawMessage)) (*bybit.Stream, error)
}

// Options tune the synchronizer. Zero values get the defaults the original
// tool shipped with.
type Options struct {
	DebounceWindow time.Duration // quiescence window for refresh triggers
	PollInterval   time.Duration // periodic position re-poll
	PageLimit      int           // order list page size
	OrderStatus    string        // order list status filter
	Coin           string        // wallet balance coin
}

func (o Options) withDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Minute
	}
	if o.PageLimit <= 0 {
		o.PageLimit = 50
	}
	if o.OrderStatus == "" {
		o.OrderStatus = "New,PartiallyFilled"
	}
	if o.Coin == "" {
		o.Coin = "USDT"
	}
	return o
}

// Synchronizer owns the mutable AccountState and reconciles REST polls,
// debounced re-fetches, and push events into it. All mutation happens inside
// its merge methods under one mutex; reads get copies.
type Synchronizer struct {
	fetcher Fetcher
	dialer  Dialer
	opts    Options
	onPrice func(price float64)

	mu      sync.Mutex
	key     Key
	epoch   uint64
	state   State
	streams []io.Closer

	orders    *debouncer
	positions *debouncer

	runCtx context.Context
}

// NewSynchronizer builds a synchronizer with an empty scope. onPrice (may be
// nil) observes every last-price update, outside the state lock.
func NewSynchronizer(fetcher Fetcher, dialer Dialer, opts Options, onPrice func(price float64)) *Synchronizer {
	s := &Synchronizer{
		fetcher: fetcher,
		dialer:  dialer,
		opts:    opts.withDefaults(),
		onPrice: onPrice,
		runCtx:  context.Background(),
	}
	s.orders = newDebouncer(s.opts.DebounceWindow, s.refreshOrders)
	s.positions = newDebouncer(s.opts.DebounceWindow, s.refreshPositions)
	return s
}

// Start binds the synchronizer to ctx and starts the periodic position
// re-poll (a staleness safety net independent of push events).
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()
	scheduler.NewIntervalScheduler(ctx, s.opts.PollInterval).Start(s.RefreshPositions)
	go func() {
		<-ctx.Done()
		s.Close()
	}()
}

// Snapshot returns a copy of the current account state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Key returns the current scope key.
func (s *Synchronizer) Key() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// RefreshOrders schedules a debounced order re-fetch.
func (s *Synchronizer) RefreshOrders() { s.orders.Trigger() }

// RefreshPositions schedules a debounced position re-fetch.
func (s *Synchronizer) RefreshPositions() { s.positions.Trigger() }

// Rekey discards the current scope and starts a new one: pending debounced
// calls are cancelled, in-flight completions for the old key will be
// dropped, streams are reopened, and — given complete credentials — the
// initial balance/order/position fetches are kicked off.
func (s *Synchronizer) Rekey(key Key) {
	s.mu.Lock()
	if key == s.key {
		s.mu.Unlock()
		return
	}
	s.orders.Stop()
	s.positions.Stop()
	s.epoch++
	epoch := s.epoch
	s.key = key
	s.state = State{}
	old := s.streams
	s.streams = nil
	ctx := s.runCtx
	s.mu.Unlock()

	for _, st := range old {
		_ = st.Close()
	}
	logger.Infof("account scope rekeyed symbol=%s", key.Symbol)

	if key.Symbol != "" {
		s.openTradeStream(ctx, key, epoch)
	}
	if key.complete() {
		s.openAccountStream(ctx, key, epoch)
		go s.fetchBalance(ctx, key, epoch)
		s.RefreshOrders()
		s.RefreshPositions()
	}
}

// Close tears the current scope down. Idempotent.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.orders.Stop()
	s.positions.Stop()
	old := s.streams
	s.streams = nil
	s.mu.Unlock()
	for _, st := range old {
		_ = st.Close()
	}
}

// current reports whether epoch still identifies the live scope; stale
// completions are discarded by their caller when it does not.
func (s *Synchronizer) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

func (s *Synchronizer) openTradeStream(ctx context.Context, key Key, epoch uint64) {
	stream, err := s.dialer.SubscribeTrades(ctx, key.Symbol, func(price float64) {
		if !s.current(epoch) {
			return
		}
		s.applyLastPrice(price)
	})
	if err != nil {
		logger.Warnf("trade stream for %s unavailable: %v", key.Symbol, err)
		return
	}
	s.adoptStream(stream, epoch)
}

func (s *Synchronizer) openAccountStream(ctx context.Context, key Key, epoch uint64) {
	stream, err := s.dialer.SubscribeAccount(ctx, key.auth(), func(topic string, data json.RawMessage) {
		if !s.current(epoch) {
			return
		}
		s.ApplyAccountMessage(topic, data)
	})
	if err != nil {
		logger.Warnf("account stream unavailable: %v", err)
		return
	}
	s.adoptStream(stream, epoch)
}

// adoptStream registers a stream with its scope; if the scope already moved
// on while dialing, the stream is closed instead.
func (s *Synchronizer) adoptStream(stream io.Closer, epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = stream.Close()
		return
	}
	s.streams = append(s.streams, stream)
	s.mu.Unlock()
}

// ApplyAccountMessage dispatches one private push message. order → merge the
// delta fields and schedule a re-poll; position → schedule a re-poll; wallet
// → shallow-merge the first payload element into the balance. stop_order
// carries no rule and is ignored.
func (s *Synchronizer) ApplyAccountMessage(topic string, data json.RawMessage) {
	switch topic {
	case "order":
		var deltas []json.RawMessage
		if err := json.Unmarshal(data, &deltas); err == nil && len(deltas) > 0 {
			s.mu.Lock()
			s.state.Orders = MergeOrderDeltas(s.state.Orders, deltas)
			s.mu.Unlock()
		}
		// The delta only refreshes known fields; the poll stays authoritative.
		s.RefreshOrders()
	case "position":
		s.RefreshPositions()
	case "wallet":
		var payload []json.RawMessage
		if err := json.Unmarshal(data, &payload); err != nil || len(payload) == 0 {
			return
		}
		s.mu.Lock()
		if merged, err := MergeBalance(s.state.Balance, payload[0]); err == nil {
			s.state.Balance = merged
		}
		s.mu.Unlock()
	}
}

func (s *Synchronizer) applyLastPrice(price float64) {
	s.mu.Lock()
	s.state.LastPrice = price
	s.mu.Unlock()
	if s.onPrice != nil {
		s.onPrice(price)
	}
}

// scope snapshots the live key and epoch for a fetch about to start.
func (s *Synchronizer) scope() (Key, uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.epoch, s.runCtx
}

func (s *Synchronizer) refreshOrders() {
	key, epoch, ctx := s.scope()
	if !key.complete() {
		return
	}
	orders, err := s.fetcher.AllActiveOrders(ctx, key.auth(), key.Symbol, s.opts.PageLimit, s.opts.OrderStatus)
	if err != nil {
		logger.Warnf("order refresh failed: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// 凭证或交易对已切换，丢弃过期结果。
		return
	}
	// A full poll replaces the authoritative list.
	s.state.Orders = orders
}

func (s *Synchronizer) refreshPositions() {
	key, epoch, ctx := s.scope()
	if !key.complete() {
		return
	}
	positions, err := s.fetcher.Positions(ctx, key.auth(), key.Symbol)
	if err != nil {
		logger.Warnf("position refresh failed: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	// Positions have no partial-merge key; each refresh replaces them.
	s.state.Positions = positions
}

func (s *Synchronizer) fetchBalance(ctx context.Context, key Key, epoch uint64) {
	balance, err := s.fetcher.WalletBalance(ctx, key.auth(), s.opts.Coin)
	if err != nil {
		logger.Warnf("balance fetch failed: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	s.state.Balance = balance
}
