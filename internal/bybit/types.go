package bybit

import (
	"encoding/json"
	"fmt"
)

// response is the envelope every v2 endpoint returns.
type response struct {
	RetCode int             `json:"ret_code"`
	RetMsg  string          `json:"ret_msg"`
	ExtCode string          `json:"ext_code"`
	ExtInfo string          `json:"ext_info"`
	Result  json.RawMessage `json:"result"`
	TimeNow string          `json:"time_now"`
}

// APIError is an exchange-reported failure (non-zero ret_code).
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit ret_code=%d: %s", e.Code, e.Msg)
}

// Balance mirrors the v2 wallet balance payload for one coin.
type Balance struct {
	WalletBalance    float64 `json:"wallet_balance"`
	AvailableBalance float64 `json:"available_balance"`
	Equity           float64 `json:"equity"`
	UsedMargin       float64 `json:"used_margin"`
	OrderMargin      float64 `json:"order_margin"`
	PositionMargin   float64 `json:"position_margin"`
	OccClosingFee    float64 `json:"occ_closing_fee"`
	OccFundingFee    float64 `json:"occ_funding_fee"`
	RealisedPnl      float64 `json:"realised_pnl"`
	UnrealisedPnl    float64 `json:"unrealised_pnl"`
	CumRealisedPnl   float64 `json:"cum_realised_pnl"`
	GivenCash        float64 `json:"given_cash"`
	ServiceCash      float64 `json:"service_cash"`
}

// ActiveOrder mirrors the v2 linear active order record. order_id is the
// exchange-assigned identity used for merging.
type ActiveOrder struct {
	OrderID        string  `json:"order_id"`
	OrderLinkID    string  `json:"order_link_id"`
	UserID         int64   `json:"user_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	OrderType      string  `json:"order_type"`
	Price          float64 `json:"price"`
	Qty            float64 `json:"qty"`
	TimeInForce    string  `json:"time_in_force"`
	OrderStatus    string  `json:"order_status"`
	LastExecPrice  float64 `json:"last_exec_price"`
	CumExecQty     float64 `json:"cum_exec_qty"`
	CumExecValue   float64 `json:"cum_exec_value"`
	CumExecFee     float64 `json:"cum_exec_fee"`
	ReduceOnly     bool    `json:"reduce_only"`
	CloseOnTrigger bool    `json:"close_on_trigger"`
	TakeProfit     float64 `json:"take_profit"`
	StopLoss       float64 `json:"stop_loss"`
	TpTriggerBy    string  `json:"tp_trigger_by"`
	SlTriggerBy    string  `json:"sl_trigger_by"`
	CreatedTime    string  `json:"created_time"`
	UpdatedTime    string  `json:"updated_time"`
}

// Position mirrors the v2 linear position record. Hedge mode: (symbol, side)
// identifies one of the two independent slots per symbol.
type Position struct {
	UserID               int64   `json:"user_id"`
	Symbol               string  `json:"symbol"`
	Side                 string  `json:"side"`
	Size                 float64 `json:"size"`
	FreeQty              float64 `json:"free_qty"`
	EntryPrice           float64 `json:"entry_price"`
	PositionValue        float64 `json:"position_value"`
	LiqPrice             float64 `json:"liq_price"`
	BustPrice            float64 `json:"bust_price"`
	Leverage             float64 `json:"leverage"`
	IsIsolated           bool    `json:"is_isolated"`
	AutoAddMargin        string  `json:"auto_add_margin"`
	PositionMargin       float64 `json:"position_margin"`
	OccClosingFee        float64 `json:"occ_closing_fee"`
	RealisedPnl          float64 `json:"realised_pnl"`
	CumRealisedPnl       float64 `json:"cum_realised_pnl"`
	UnrealisedPnl        float64 `json:"unrealised_pnl"`
	DeleverageIndicator  float64 `json:"deleverage_indicator"`
	TpSlMode             string  `json:"tp_sl_mode"`
	TakeProfit           float64 `json:"take_profit"`
	StopLoss             float64 `json:"stop_loss"`
	TrailingStop         float64 `json:"trailing_stop"`
	PositionStatus       string  `json:"position_status"`
	PositionIdx          int     `json:"position_idx"`
}

// orderListResult is the paged payload of /private/linear/order/list.
type orderListResult struct {
	CurrentPage int           `json:"current_page"`
	LastPage    int           `json:"last_page"`
	Data        []ActiveOrder `json:"data"`
}

// OrderRequest describes one limit order of a ladder.
type OrderRequest struct {
	Symbol         string
	Side           string
	OrderType      string
	Qty            float64
	Price          float64
	TimeInForce    string
	ReduceOnly     bool
	CloseOnTrigger bool
	OrderLinkID    string
}

// ConditionalOrderRequest describes a stop order that activates once
// StopPx is crossed. BasePrice tells the exchange which direction the
// trigger is approached from.
type ConditionalOrderRequest struct {
	Symbol         string
	Side           string
	OrderType      string
	Qty            float64
	BasePrice      float64
	StopPx         float64
	TimeInForce    string
	TriggerBy      string
	ReduceOnly     bool
	CloseOnTrigger bool
	OrderLinkID    string
}
