package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ladderbot/internal/account"
	"ladderbot/internal/ladder"
	"ladderbot/internal/pkg/convert"
	"ladderbot/internal/trader"
)

// Trader is the slice of the order service the API drives.
type Trader interface {
	Params() trader.Params
	SetParams(p trader.Params)
	Preview() trader.Preview
	PreviewFor(p trader.Params) trader.Preview
	Submit(ctx context.Context, side string) ([]ladder.Level, error)
	Cancel(ctx context.Context, orderIDs []string, confirmed bool) error
}

// StateSource reads the current account snapshot.
type StateSource interface {
	Snapshot() account.State
}

// Router 暴露下单与状态查询接口。
type Router struct {
	trader Trader
	state  StateSource
}

// NewRouter 构造 API router。
func NewRouter(t Trader, s StateSource) *Router {
	return &Router{trader: t, state: s}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/params", r.handleGetParams)
	group.PUT("/params", r.handlePutParams)
	group.GET("/state", r.handleState)
	group.GET("/preview", r.handlePreview)
	group.POST("/orders/long", r.handleSubmit("Buy"))
	group.POST("/orders/short", r.handleSubmit("Sell"))
	group.POST("/orders/cancel", r.handleCancel)
}

func (r *Router) handleGetParams(c *gin.Context) {
	c.JSON(http.StatusOK, r.trader.Params().Redacted())
}

func (r *Router) handlePutParams(c *gin.Context) {
	var p trader.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid params payload"})
		return
	}
	// A client echoing back a redacted GET keeps its stored secret.
	if p.Secret == "******" {
		p.Secret = r.trader.Params().Secret
	}
	r.trader.SetParams(p)
	c.JSON(http.StatusOK, r.trader.Params().Redacted())
}

func (r *Router) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, r.state.Snapshot())
}

// handlePreview supports what-if overrides via query parameters. Values are
// parsed leniently the way the original form inputs were: a malformed
// number counts as zero, not as an error.
func (r *Router) handlePreview(c *gin.Context) {
	p := r.trader.Params()
	if raw, ok := c.GetQuery("min_price"); ok {
		p.MinPrice, _ = convert.ParseFloat(raw)
	}
	if raw, ok := c.GetQuery("max_price"); ok {
		p.MaxPrice, _ = convert.ParseFloat(raw)
	}
	if raw, ok := c.GetQuery("stop_loss"); ok {
		p.StopLoss, _ = convert.ParseFloat(raw)
	}
	if raw, ok := c.GetQuery("percent"); ok {
		p.Percent, _ = convert.ParseFloat(raw)
	}
	if raw, ok := c.GetQuery("leverage"); ok {
		p.Leverage, _ = convert.ParseFloat(raw)
	}
	if raw, ok := c.GetQuery("spread_count"); ok {
		p.SpreadCount, _ = convert.ParseInt(raw)
	}
	if raw, ok := c.GetQuery("reduce_only"); ok {
		p.ReduceOnly = raw == "true" || raw == "1"
	}
	c.JSON(http.StatusOK, r.trader.PreviewFor(p))
}

func (r *Router) handleSubmit(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		levels, err := r.trader.Submit(c.Request.Context(), side)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, trader.ErrNotEligible) || errors.Is(err, trader.ErrEmptyLadder) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error(), "submitted": len(levels)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"submitted": len(levels), "levels": levels})
	}
}

type cancelRequest struct {
	OrderIDs []string `json:"order_ids"`
	Confirm  bool     `json:"confirm"`
}

func (r *Router) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cancel payload"})
		return
	}
	if err := r.trader.Cancel(c.Request.Context(), req.OrderIDs, req.Confirm); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, trader.ErrNotConfirmed) || errors.Is(err, trader.ErrNotEligible) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": len(req.OrderIDs)})
}
