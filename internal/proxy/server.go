// Package proxy exposes the local signing proxy: clients send unsigned
// exchange requests with their secret attached, the proxy strips the secret,
// signs, and forwards. The secret never leaves the request scope.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ladderbot/internal/bybit"
	"ladderbot/internal/logger"
)

// Server 本地签名代理。
type Server struct {
	addr   string
	router *gin.Engine
}

// Options 描述代理的监听地址与转发目标。
type Options struct {
	Addr       string
	TargetURL  string
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewServer builds the proxy. GET and POST under /api/bybit/ are forwarded
// to the target with the stripped path.
func NewServer(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = ":3001"
	}
	target, err := url.Parse(strings.TrimSpace(opts.TargetURL))
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("proxy target_url invalid: %q", opts.TargetURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	f := &forwarder{target: target, client: opts.HTTPClient, now: opts.Now}
	router.GET("/api/bybit/*path", f.handleGet)
	router.POST("/api/bybit/*path", f.handlePost)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &Server{addr: opts.Addr, router: router}, nil
}

// requestLogger 只记录路径，查询串里带着密钥，绝不能进日志。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("PROXY %s %s status=%d dur=%s", method, path, c.Writer.Status(), time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动代理，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

type forwarder struct {
	target *url.URL
	client *http.Client
	now    func() time.Time
}

func (f *forwarder) handleGet(c *gin.Context) {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	secret, ok := popSecret(params)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ret_code": -1, "ret_msg": "secret required"})
		return
	}
	bybit.SignParams(params, secret, f.now())

	target := f.targetFor(c.Param("path"))
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ret_code": -1, "ret_msg": err.Error()})
		return
	}
	f.relay(c, req)
}

func (f *forwarder) handlePost(c *gin.Context) {
	params, err := decodeBody(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ret_code": -1, "ret_msg": "invalid json body"})
		return
	}
	secret, ok := popSecret(params)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ret_code": -1, "ret_msg": "secret required"})
		return
	}
	bybit.SignParams(params, secret, f.now())

	body, err := json.Marshal(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ret_code": -1, "ret_msg": err.Error()})
		return
	}
	target := f.targetFor(c.Param("path"))
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ret_code": -1, "ret_msg": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	f.relay(c, req)
}

// relay forwards the upstream response verbatim: status, content type, body.
func (f *forwarder) relay(c *gin.Context, req *http.Request) {
	resp, err := f.client.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ret_code": -1, "ret_msg": err.Error()})
		return
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ret_code": -1, "ret_msg": err.Error()})
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, raw)
}

func (f *forwarder) targetFor(path string) *url.URL {
	target := *f.target
	target.Path = path
	return &target
}

// popSecret extracts and removes the client secret so it never reaches the
// exchange, the logs, or any stored form of the request.
func popSecret(params map[string]string) (string, bool) {
	secret, ok := params["secret"]
	delete(params, "secret")
	if !ok || secret == "" {
		return "", false
	}
	return secret, true
}

// decodeBody flattens a JSON object into string parameters. UseNumber keeps
// numeric values exactly as the client wrote them, so the signature matches
// what the client would compute.
func decodeBody(r io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	params := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			params[k] = val
		case json.Number:
			params[k] = val.String()
		case bool:
			if val {
				params[k] = "true"
			} else {
				params[k] = "false"
			}
		case nil:
			// dropped, same as an absent field
		default:
			return nil, fmt.Errorf("parameter %s is not a scalar", k)
		}
	}
	return params, nil
}
