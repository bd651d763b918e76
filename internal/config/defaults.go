package config

import "strings"

// 默认值常量
const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultBybitREST    = "https://api.bybit.com"
	defaultPublicWS     = "wss://stream.bybit.com/realtime_public"
	defaultPrivateWS    = "wss://stream.bybit.com/realtime_private"
	defaultInstruments  = "configs/instruments.yaml"
	defaultDebounceMS   = 500
	defaultPollInterval = "60s"
	defaultPageLimit    = 50
	defaultOrderStatus  = "New,PartiallyFilled"
	defaultCoin         = "USDT"
	defaultSymbol       = "BTCUSDT"
	defaultLeverage     = 7
	defaultSpreadCount  = 50
	defaultAPIAddr      = ":9991"
	defaultProxyAddr    = ":3001"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Bybit.applyDefaults(keys)
	c.Sync.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.API.applyDefaults(keys)
	c.Proxy.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
	)
}

func (b *BybitConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("bybit.rest_url", &b.RESTURL, defaultBybitREST),
		stringFieldDefault("bybit.public_ws_url", &b.PublicWSURL, defaultPublicWS),
		stringFieldDefault("bybit.private_ws_url", &b.PrivateWSURL, defaultPrivateWS),
		stringFieldDefault("bybit.instruments_path", &b.InstrumentsPath, defaultInstruments),
	)
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "sync.debounce_ms",
			need:  func() bool { return s.DebounceMS <= 0 },
			apply: func() { s.DebounceMS = defaultDebounceMS },
		},
		stringFieldDefault("sync.poll_interval", &s.PollInterval, defaultPollInterval),
		fieldDefault{
			key:   "sync.page_limit",
			need:  func() bool { return s.PageLimit <= 0 },
			apply: func() { s.PageLimit = defaultPageLimit },
		},
		stringFieldDefault("sync.order_status", &s.OrderStatus, defaultOrderStatus),
		stringFieldDefault("sync.coin", &s.Coin, defaultCoin),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.symbol", &t.Symbol, defaultSymbol),
		boolFieldDefault("trading.post_only", &t.PostOnly, true),
		fieldDefault{
			key:   "trading.leverage",
			need:  func() bool { return t.Leverage <= 0 },
			apply: func() { t.Leverage = defaultLeverage },
		},
		fieldDefault{
			key:   "trading.spread_count",
			need:  func() bool { return t.SpreadCount <= 0 },
			apply: func() { t.SpreadCount = defaultSpreadCount },
		},
	)
	if t.Percent < 0 {
		t.Percent = 0
	}
}

func (a *APIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("api.http_addr", &a.HTTPAddr, defaultAPIAddr),
	)
}

func (p *ProxyConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("proxy.listen_addr", &p.ListenAddr, defaultProxyAddr),
		stringFieldDefault("proxy.target_url", &p.TargetURL, defaultBybitREST),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
