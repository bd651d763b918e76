package trader

import "ladderbot/internal/account"

// Params is the full user-editable order form. Credentials travel with it
// because changing them re-scopes the whole account view.
type Params struct {
	APIKey      string  `json:"api_key"`
	Secret      string  `json:"secret"`
	Symbol      string  `json:"symbol"`
	Leverage    float64 `json:"leverage"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	StopLoss    float64 `json:"stop_loss"`
	SpreadCount int     `json:"spread_count"`
	Percent     float64 `json:"percent"`
	ReduceOnly  bool    `json:"reduce_only"`
	PostOnly    bool    `json:"post_only"`
}

func (p Params) key() account.Key {
	return account.Key{APIKey: p.APIKey, Secret: p.Secret, Symbol: p.Symbol}
}

// Redacted returns a copy safe to print or return to a client.
func (p Params) Redacted() Params {
	if p.Secret != "" {
		p.Secret = "******"
	}
	return p
}

// timeInForce maps the post-only flag onto the exchange enum.
func (p Params) timeInForce() string {
	if p.PostOnly {
		return "PostOnly"
	}
	return "GoodTillCancel"
}
