package config

import (
	"fmt"
	"strings"

	"ladderbot/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Bybit.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.API.validate(); err != nil {
		return err
	}
	if err := c.Proxy.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
}

func (b *BybitConfig) validate() error {
	if strings.TrimSpace(b.RESTURL) == "" {
		return fmt.Errorf("bybit.rest_url cannot be empty")
	}
	if strings.TrimSpace(b.PublicWSURL) == "" {
		return fmt.Errorf("bybit.public_ws_url cannot be empty")
	}
	if strings.TrimSpace(b.PrivateWSURL) == "" {
		return fmt.Errorf("bybit.private_ws_url cannot be empty")
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.DebounceMS <= 0 {
		return fmt.Errorf("sync.debounce_ms must be > 0")
	}
	if _, ok := scheduler.ParseIntervalDuration(s.PollInterval); !ok {
		return fmt.Errorf("sync.poll_interval must look like 30s/15m/1h, got %q", s.PollInterval)
	}
	// Bybit 的 order/list 单页上限是 50。
	if s.PageLimit < 1 || s.PageLimit > 50 {
		return fmt.Errorf("sync.page_limit must be in [1,50]")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol cannot be empty")
	}
	if t.Leverage <= 0 {
		return fmt.Errorf("trading.leverage must be > 0")
	}
	if t.SpreadCount < 1 {
		return fmt.Errorf("trading.spread_count must be >= 1")
	}
	if t.Percent < 0 || t.Percent > 100 {
		return fmt.Errorf("trading.percent must be in [0,100]")
	}
	return nil
}

func (a *APIConfig) validate() error {
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("api.http_addr cannot be empty")
	}
	return nil
}

func (p *ProxyConfig) validate() error {
	if !p.Enabled {
		return nil
	}
	if strings.TrimSpace(p.ListenAddr) == "" {
		return fmt.Errorf("proxy.listen_addr cannot be empty")
	}
	if strings.TrimSpace(p.TargetURL) == "" {
		return fmt.Errorf("proxy.target_url cannot be empty")
	}
	return nil
}
