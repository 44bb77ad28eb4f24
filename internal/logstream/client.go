package logstream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client follows one log channel and reconnects with Backoff whenever the
// connection drops.
type Client struct {
	url     string
	header  http.Header
	backoff Backoff
	logger  *slog.Logger
	dialer  *websocket.Dialer
	// A connection that lasts this long without a message still counts as
	// healthy and resets the backoff.
	stableAfter time.Duration

	lines     chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client for the WebSocket url. A non-empty token is
// sent as a Bearer Authorization header.
func NewClient(url, token string, b Backoff, logger *slog.Logger) *Client {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Client{
		url:     url,
		header:  header,
		backoff: b,
		logger:  logger,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},

		stableAfter: 10 * time.Second,
		lines:   make(chan string, 256),
		done:    make(chan struct{}),
	}
}

// Lines returns the received log lines. The channel is closed when Run
// returns.
func (c *Client) Lines() <-chan string { return c.lines }

// Close stops the client and closes its connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run connects and reads until ctx is cancelled or Close is called.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer close(c.lines)

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !c.wait(ctx, "logstream: dial failed", slog.String("error", err.Error())) {
				return nil
			}
			continue
		}

		c.logger.Info("logstream: connected", slog.String("url", c.url))
		connectedAt := time.Now()
		received := c.read(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		if received || time.Since(connectedAt) >= c.stableAfter {
			c.backoff.Reset()
		}
		if !c.wait(ctx, "logstream: connection closed") {
			return nil
		}
	}
}

// wait sleeps for the next backoff step. It returns false if ctx ends first.
func (c *Client) wait(ctx context.Context, msg string, attrs ...any) bool {
	d := c.backoff.Next()
	attrs = append([]any{slog.String("url", c.url), slog.Duration("retry_in", d)}, attrs...)
	c.logger.Warn(msg, attrs...)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// read forwards messages until the connection ends. It reports whether any
// message arrived.
func (c *Client) read(ctx context.Context, conn *websocket.Conn) bool {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	received := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return received
		}
		received = true
		select {
		case c.lines <- string(msg):
		case <-ctx.Done():
			return received
		}
	}
}
