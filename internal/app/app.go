// Package app wires the object graph and runs every service under one
// errgroup: the API server, the optional signing proxy, the account
// synchronizer, and the config watcher.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ladderbot/internal/account"
	"ladderbot/internal/api"
	"ladderbot/internal/bybit"
	"ladderbot/internal/config"
	"ladderbot/internal/logger"
	"ladderbot/internal/proxy"
	"ladderbot/internal/trader"
)

// App 负责应用级编排：加载配置→初始化依赖→启动服务。
type App struct {
	cfg     *config.Config
	sync    *account.Synchronizer
	trader  *trader.Service
	apiSrv  *api.Server
	proxy   *proxy.Server
	watcher *config.Watcher
}

// Options 控制可选部件，主要给测试留钩子。
type Options struct {
	ConfigPath string // enables the config watcher when set
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	client, err := bybit.NewClient(cfg.Bybit.RESTURL)
	if err != nil {
		return nil, err
	}
	dialer := bybit.NewStreamDialer(cfg.Bybit.PublicWSURL, cfg.Bybit.PrivateWSURL)
	instruments, err := config.LoadInstruments(cfg.Bybit.InstrumentsPath)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	// trader 和 synchronizer 互相引用：经由闭包解开环。
	a.sync = account.NewSynchronizer(client, dialer, account.Options{
		DebounceWindow: cfg.Sync.DebounceWindow(),
		PollInterval:   cfg.Sync.PollIntervalDuration(),
		PageLimit:      cfg.Sync.PageLimit,
		OrderStatus:    cfg.Sync.OrderStatus,
		Coin:           cfg.Sync.Coin,
	}, func(price float64) {
		if a.trader != nil {
			a.trader.ObservePrice(price)
		}
	})
	a.trader = trader.NewService(client, a.sync, instruments.Lookup, tradingParams(cfg.Trading))

	a.apiSrv, err = api.NewServer(cfg.API.HTTPAddr, api.NewRouter(a.trader, a.sync))
	if err != nil {
		return nil, err
	}

	if cfg.Proxy.Enabled {
		a.proxy, err = proxy.NewServer(proxy.Options{
			Addr:      cfg.Proxy.ListenAddr,
			TargetURL: cfg.Proxy.TargetURL,
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.ConfigPath != "" {
		a.watcher, err = config.NewWatcher(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		a.watcher.Subscribe(func(next *config.Config) {
			logger.Infof("config reloaded, applying trading section")
			a.trader.SetParams(tradingParams(next.Trading))
		})
	}

	return a, nil
}

// Run 启动全部服务，直到 ctx 取消或某个服务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	a.sync.Start(ctx)
	// The initial form usually carries credentials from the config file;
	// an empty key just leaves the scope dormant until a PUT /api/params.
	a.sync.Rekey(keyOf(a.trader.Params()))

	group.Go(func() error {
		logger.Infof("api listening on %s", a.apiSrv.Addr())
		if err := a.apiSrv.Start(ctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if a.proxy != nil {
		group.Go(func() error {
			logger.Infof("signing proxy listening on %s", a.proxy.Addr())
			if err := a.proxy.Start(ctx); err != nil {
				return fmt.Errorf("proxy server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		if a.watcher != nil {
			_ = a.watcher.Close()
		}
		a.sync.Close()
		return nil
	})

	return group.Wait()
}

func tradingParams(t config.TradingConfig) trader.Params {
	return trader.Params{
		APIKey:      t.APIKey,
		Secret:      t.Secret,
		Symbol:      t.Symbol,
		Leverage:    t.Leverage,
		SpreadCount: t.SpreadCount,
		Percent:     t.Percent,
		PostOnly:    t.PostOnly,
		ReduceOnly:  t.ReduceOnly,
	}
}

func keyOf(p trader.Params) account.Key {
	return account.Key{APIKey: p.APIKey, Secret: p.Secret, Symbol: p.Symbol}
}
