// Package ws consumes the sequencer's market-data and account push
// channels. It is a read-only stream for trading-decision logic and has no
// bearing on signing or nonce correctness.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 15 * time.Second
	readTimeout   = 45 * time.Second
	writeTimeout  = 5 * time.Second
	minBackoff    = 500 * time.Millisecond
	maxBackoff    = 30 * time.Second
	updateBacklog = 256
)

// OrderBookChannel names the order-book stream for one market.
func OrderBookChannel(marketIndex uint8) string {
	return fmt.Sprintf("order_book/%d", marketIndex)
}

// AccountChannel names the account-state stream for one account.
func AccountChannel(accountIndex int64) string {
	return fmt.Sprintf("account_all/%d", accountIndex)
}

// Update is one push message, tagged with the channel it arrived on. Data is
// the raw JSON payload; callers decode what they subscribe to.
type Update struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscribeMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Client maintains one websocket connection to the push endpoint,
// resubscribing after every reconnect. Updates are dropped, not buffered
// unboundedly, when the consumer falls behind.
type Client struct {
	url    string
	dialer *websocket.Dialer
	log    *zap.Logger

	mu       sync.Mutex
	channels map[string]struct{}
	conn     *websocket.Conn

	// wmu serializes data-frame writes. gorilla/websocket allows only one
	// concurrent writer per connection; Subscribe and the post-reconnect
	// resubscribe loop may otherwise race. Control frames (the keepalive
	// ping) are exempt and stay outside this lock.
	wmu sync.Mutex

	updates chan Update
}

func NewClient(url string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		log:      log,
		channels: make(map[string]struct{}),
		updates:  make(chan Update, updateBacklog),
	}
}

// Updates returns the stream of push messages. Closed when Run returns.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Subscribe registers channels. Effective immediately on a live connection
// and replayed after every reconnect.
func (c *Client) Subscribe(channels ...string) error {
	c.mu.Lock()
	conn := c.conn
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	for _, ch := range channels {
		if err := c.writeSubscribe(conn, ch); err != nil {
			return err
		}
	}
	return nil
}

// Run connects and pumps updates until ctx is cancelled. Reconnects with
// capped exponential backoff; the backoff resets after a healthy connection.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.updates)

	backoff := minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}
		c.log.Warn("stream disconnected, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	for _, ch := range channels {
		if err := c.writeSubscribe(conn, ch); err != nil {
			return err
		}
	}
	c.log.Info("stream connected", zap.Int("channels", len(channels)))

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Keepalive pings; closing the connection unblocks the read loop.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(writeTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-pingDone:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read failed: %w", err)
		}

		var update Update
		if err := json.Unmarshal(raw, &update); err != nil {
			c.log.Warn("dropping undecodable push message", zap.Error(err))
			continue
		}

		select {
		case c.updates <- update:
		default:
			c.log.Warn("consumer behind, dropping update", zap.String("channel", update.Channel))
		}
	}
}

func (c *Client) writeSubscribe(conn *websocket.Conn, channel string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", Channel: channel}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	return nil
}
