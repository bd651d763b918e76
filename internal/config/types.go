package config

import (
	"strings"
	"time"

	"ladderbot/internal/scheduler"
)

// Config 是 ladderbot 的主配置载体。
type Config struct {
	App     AppConfig     `toml:"app"`
	Bybit   BybitConfig   `toml:"bybit"`
	Sync    SyncConfig    `toml:"sync"`
	Trading TradingConfig `toml:"trading"`
	API     APIConfig     `toml:"api"`
	Proxy   ProxyConfig   `toml:"proxy"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

// BybitConfig describes the exchange endpoints and the instrument table.
type BybitConfig struct {
	RESTURL         string `toml:"rest_url"`
	PublicWSURL     string `toml:"public_ws_url"`
	PrivateWSURL    string `toml:"private_ws_url"`
	InstrumentsPath string `toml:"instruments_path"`
}

// SyncConfig tunes the account state synchronizer.
type SyncConfig struct {
	DebounceMS   int    `toml:"debounce_ms"`
	PollInterval string `toml:"poll_interval"` // 写法如 30s / 15m / 1h
	PageLimit    int    `toml:"page_limit"`
	OrderStatus  string `toml:"order_status"`
	Coin         string `toml:"coin"`
}

func (s SyncConfig) DebounceWindow() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// PollIntervalDuration returns the parsed re-poll interval. Validation has
// already rejected configs it cannot parse; the fallback covers the zero
// value in tests.
func (s SyncConfig) PollIntervalDuration() time.Duration {
	d, ok := scheduler.ParseIntervalDuration(s.PollInterval)
	if !ok {
		return time.Minute
	}
	return d
}

// TradingConfig is the initial order form. Credentials live here so that
// editing the config file re-keys the account scope at runtime.
type TradingConfig struct {
	APIKey      string  `toml:"api_key"`
	Secret      string  `toml:"secret"`
	Symbol      string  `toml:"symbol"`
	Leverage    float64 `toml:"leverage"`
	SpreadCount int     `toml:"spread_count"`
	Percent     float64 `toml:"percent"`
	PostOnly    bool    `toml:"post_only"`
	ReduceOnly  bool    `toml:"reduce_only"`
}

type APIConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

// ProxyConfig controls the local signing proxy.
type ProxyConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
	TargetURL  string `toml:"target_url"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
