package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"ladderbot/internal/logger"
)

// accountTopics are the private stream subscriptions. stop_order arrives on
// the same stream but carries no dispatch rule; consumers ignore it.
var accountTopics = []string{"position", "order", "stop_order", "wallet"}

// StreamDialer opens the public and private push feeds.
type StreamDialer struct {
	PublicURL  string
	PrivateURL string

	now func() time.Time
}

// NewStreamDialer constructs a dialer for the two stream endpoints.
func NewStreamDialer(publicURL, privateURL string) *StreamDialer {
	return &StreamDialer{PublicURL: publicURL, PrivateURL: privateURL, now: time.Now}
}

// SetClock sets the expiry timestamp source for testing.
func (d *StreamDialer) SetClock(now func() time.Time) { d.now = now }

// Stream is one live subscription. Close is idempotent: it sends the
// unsubscribe op once and shuts the socket.
type Stream struct {
	conn        *websocket.Conn
	unsubscribe []byte
	closeOnce   sync.Once
	done        chan struct{}
}

// Close unsubscribes and closes the socket. Safe to call repeatedly and
// concurrently with the read loop.
func (s *Stream) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.done)
		if len(s.unsubscribe) > 0 {
			// Best effort; the connection may already be gone.
			_ = s.conn.WriteMessage(websocket.TextMessage, s.unsubscribe)
		}
		_ = s.conn.Close()
	})
	return nil
}

// SubscribeTrades opens the public stream for trade.<symbol> and delivers
// the price of the LAST element of each message's data array.
func (d *StreamDialer) SubscribeTrades(ctx context.Context, symbol string, onPrice func(price float64)) (*Stream, error) {
	topic := "trade." + symbol
	stream, err := d.open(ctx, d.PublicURL, []string{topic})
	if err != nil {
		return nil, err
	}
	go stream.readLoop(ctx, func(msg []byte) {
		if gjson.GetBytes(msg, "topic").String() != topic {
			return
		}
		data := gjson.GetBytes(msg, "data").Array()
		if len(data) == 0 {
			return
		}
		price := data[len(data)-1].Get("price").Float()
		if price > 0 {
			onPrice(price)
		}
	})
	return stream, nil
}

// SubscribeAccount performs the signed handshake and opens the private
// stream. Each typed message is handed to onTopic with the raw data payload.
func (d *StreamDialer) SubscribeAccount(ctx context.Context, auth Auth, onTopic func(topic string, data json.RawMessage)) (*Stream, error) {
	expires, signature := StreamSignature(auth.Secret, d.now())
	handshake := fmt.Sprintf("%s?api_key=%s&expires=%s&signature=%s",
		d.PrivateURL, auth.APIKey, strconv.FormatInt(expires, 10), signature)

	stream, err := d.open(ctx, handshake, accountTopics)
	if err != nil {
		return nil, err
	}
	go stream.readLoop(ctx, func(msg []byte) {
		topic := gjson.GetBytes(msg, "topic").String()
		if topic == "" {
			return
		}
		data := gjson.GetBytes(msg, "data")
		onTopic(topic, json.RawMessage(data.Raw))
	})
	return stream, nil
}

func (d *StreamDialer) open(ctx context.Context, rawURL string, topics []string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing stream failed: %w", err)
	}
	sub, err := json.Marshal(map[string]any{"op": "subscribe", "args": topics})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing failed: %w", err)
	}
	unsub, _ := json.Marshal(map[string]any{"op": "unsubscribe", "args": topics})
	return &Stream{conn: conn, unsubscribe: unsub, done: make(chan struct{})}, nil
}

// readLoop delivers messages until the socket dies or ctx is cancelled.
// There is no reconnect policy: the stream ends and teardown is clean.
func (s *Stream) readLoop(ctx context.Context, handle func(msg []byte)) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warnf("stream read ended: %v", err)
			}
			s.Close()
			return
		}
		handle(msg)
	}
}
