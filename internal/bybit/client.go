package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client wraps the Bybit v2 linear REST endpoints the tool needs.
// Credentials are passed per call; the client itself is account-agnostic.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// NewClient constructs a REST client for the given base URL.
// The http.Client deliberately carries no Timeout: failures surface to the
// caller and the next poll/push cycle self-heals, nothing retries.
func NewClient(rawURL string) (*Client, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("bybit rest_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing bybit rest_url failed: %w", err)
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		now:        time.Now,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetClock sets the timestamp source for testing.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// WalletBalance fetches the wallet balance for one coin.
func (c *Client) WalletBalance(ctx context.Context, auth Auth, coin string) (Balance, error) {
	params := map[string]string{}
	if coin != "" {
		params["coin"] = coin
	}
	var result map[string]Balance
	if err := c.get(ctx, "/v2/private/wallet/balance", auth, params, &result); err != nil {
		return Balance{}, err
	}
	b, ok := result[coin]
	if !ok {
		return Balance{}, fmt.Errorf("wallet balance missing coin %s", coin)
	}
	return b, nil
}

// Positions fetches both hedge-mode position slots for symbol.
func (c *Client) Positions(ctx context.Context, auth Auth, symbol string) ([]Position, error) {
	params := map[string]string{"symbol": symbol}
	var result []Position
	if err := c.get(ctx, "/private/linear/position/list", auth, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ActiveOrderQuery filters one page of the active order list.
type ActiveOrderQuery struct {
	Symbol      string
	OrderStatus string
	Page        int
	Limit       int
}

// ActiveOrders fetches a single page of active orders.
func (c *Client) ActiveOrders(ctx context.Context, auth Auth, q ActiveOrderQuery) (int, []ActiveOrder, error) {
	params := map[string]string{"symbol": q.Symbol}
	if q.OrderStatus != "" {
		params["order_status"] = q.OrderStatus
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	var result orderListResult
	if err := c.get(ctx, "/private/linear/order/list", auth, params, &result); err != nil {
		return 0, nil, err
	}
	return result.CurrentPage, result.Data, nil
}

// AllActiveOrders walks every page of the active order list. Pages are
// requested strictly sequentially; a page shorter than the limit is the last
// one. A non-zero ret_code on any page fails the whole fetch — partial pages
// are discarded rather than returned. 全量成功或整体失败。
func (c *Client) AllActiveOrders(ctx context.Context, auth Auth, symbol string, limit int, orderStatus string) ([]ActiveOrder, error) {
	if limit <= 0 {
		limit = 20
	}
	q := ActiveOrderQuery{Symbol: symbol, OrderStatus: orderStatus, Limit: limit}
	var orders []ActiveOrder
	for {
		currentPage, data, err := c.ActiveOrders(ctx, auth, q)
		if err != nil {
			return nil, err
		}
		orders = append(orders, data...)
		if len(data) < limit {
			return orders, nil
		}
		q.Page = currentPage + 1
	}
}

// PlaceOrder submits one limit (or market) order.
func (c *Client) PlaceOrder(ctx context.Context, auth Auth, req OrderRequest) (*ActiveOrder, error) {
	linkID := req.OrderLinkID
	if linkID == "" {
		linkID = uuid.NewString()
	}
	params := map[string]string{
		"symbol":           req.Symbol,
		"side":             req.Side,
		"order_type":       req.OrderType,
		"qty":              formatFloat(req.Qty),
		"time_in_force":    req.TimeInForce,
		"reduce_only":      strconv.FormatBool(req.ReduceOnly),
		"close_on_trigger": strconv.FormatBool(req.CloseOnTrigger),
		"order_link_id":    linkID,
	}
	if req.Price > 0 {
		params["price"] = formatFloat(req.Price)
	}
	var order ActiveOrder
	if err := c.post(ctx, "/private/linear/order/create", auth, params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// PlaceConditionalOrder submits one stop order.
func (c *Client) PlaceConditionalOrder(ctx context.Context, auth Auth, req ConditionalOrderRequest) error {
	linkID := req.OrderLinkID
	if linkID == "" {
		linkID = uuid.NewString()
	}
	params := map[string]string{
		"symbol":           req.Symbol,
		"side":             req.Side,
		"order_type":       req.OrderType,
		"qty":              formatFloat(req.Qty),
		"base_price":       formatFloat(req.BasePrice),
		"stop_px":          formatFloat(req.StopPx),
		"time_in_force":    req.TimeInForce,
		"reduce_only":      strconv.FormatBool(req.ReduceOnly),
		"close_on_trigger": strconv.FormatBool(req.CloseOnTrigger),
		"order_link_id":    linkID,
	}
	if req.TriggerBy != "" {
		params["trigger_by"] = req.TriggerBy
	}
	return c.post(ctx, "/private/linear/stop-order/create", auth, params, nil)
}

// CancelOrder cancels a single working order by order_id.
func (c *Client) CancelOrder(ctx context.Context, auth Auth, symbol, orderID string) error {
	params := map[string]string{
		"symbol":   symbol,
		"order_id": orderID,
	}
	return c.post(ctx, "/private/linear/order/cancel", auth, params, nil)
}

func (c *Client) get(ctx context.Context, path string, auth Auth, params map[string]string, out any) error {
	signed := signedParams(auth, params, c.now())
	target := *c.baseURL
	target.Path = path
	query := url.Values{}
	for k, v := range signed {
		query.Set(k, v)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, auth Auth, params map[string]string, out any) error {
	signed := signedParams(auth, params, c.now())
	body, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	target := *c.baseURL
	target.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bybit request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading bybit response failed: %w", err)
	}
	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decoding bybit response failed: %w", err)
	}
	if envelope.RetCode != 0 {
		return &APIError{Code: envelope.RetCode, Msg: envelope.RetMsg}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decoding bybit result failed: %w", err)
	}
	return nil
}

// signedParams copies params, adds the api_key, stamps the timestamp and
// attaches the signature. The caller's map is left untouched.
func signedParams(auth Auth, params map[string]string, now time.Time) map[string]string {
	signed := make(map[string]string, len(params)+3)
	for k, v := range params {
		signed[k] = v
	}
	signed["api_key"] = auth.APIKey
	SignParams(signed, auth.Secret, now)
	return signed
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
