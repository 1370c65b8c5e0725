// Package liveclient talks to the live node under verification: pool and
// vault snapshots over HTTP, the event stream over a websocket. The client
// accumulates every event it sees; the verifier reads the growing log and
// never consumes destructively.
package liveclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"PoolOracle/internal/event"
	"PoolOracle/internal/observability"
)

// Client is a live node client. Safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	log     zerolog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	events event.Events

	wsConn *websocket.Conn
	wsDone chan struct{}
}

// New creates a client for a node's REST base URL.
func New(baseURL string, logger zerolog.Logger) *Client {
	return NewWithMetrics(baseURL, nil, logger)
}

// NewWithMetrics additionally records request latency and event arrivals.
func NewWithMetrics(baseURL string, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.With().Str("component", "liveclient").Logger(),
		metrics: metrics,
	}
}

// ConnectWebsocket dials the node's event stream and starts accumulating
// events until Close. Dial failures retry with exponential backoff until the
// context expires.
func (c *Client) ConnectWebsocket(ctx context.Context) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	var conn *websocket.Conn
	op := func() error {
		var dialErr error
		conn, _, dialErr = websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return dialErr
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	c.wsConn = conn
	c.wsDone = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn)
	c.log.Info().Str("url", wsURL).Msg("event stream connected")
	return nil
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/events"
	return u.String(), nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.wsDone)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("event stream closed")
			}
			return
		}
		var evs event.Events
		if err := json.Unmarshal(msg, &evs); err != nil {
			// single-event frames are also valid
			var ev event.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				c.log.Warn().Err(err).Msg("undecodable event frame")
				continue
			}
			evs = event.Events{ev}
		}
		c.mu.Lock()
		c.events = append(c.events, evs...)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.LiveEventsReceived.Add(float64(len(evs)))
		}
	}
}

// Events returns a copy of every event seen so far, in arrival order.
func (c *Client) Events() event.Events {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(event.Events, len(c.events))
	copy(out, c.events)
	return out
}

// GetPools fetches the node's current pool snapshots.
func (c *Client) GetPools(ctx context.Context) ([]PoolSnapshot, error) {
	var pools []PoolSnapshot
	if err := c.getJSON(ctx, "/pools", &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

// GetVaultData fetches the reserve and bond-reward counters, at a specific
// height when one is given.
func (c *Client) GetVaultData(ctx context.Context, height int64) (VaultData, error) {
	path := "/vault"
	if height > 0 {
		path = fmt.Sprintf("/vault?height=%d", height)
	}
	var vd VaultData
	if err := c.getJSON(ctx, path, &vd); err != nil {
		return VaultData{}, err
	}
	return vd, nil
}

// GetBlockHeight fetches the node's current block height.
func (c *Client) GetBlockHeight(ctx context.Context) (int64, error) {
	var resp struct {
		Height flexInt `json:"height"`
	}
	if err := c.getJSON(ctx, "/lastblock", &resp); err != nil {
		return 0, err
	}
	return int64(resp.Height), nil
}

// WaitForBlocks blocks until the node has produced count more blocks,
// polling on a fixed interval.
func (c *Client) WaitForBlocks(ctx context.Context, count int64) error {
	start, err := c.GetBlockHeight(ctx)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h, err := c.GetBlockHeight(ctx)
			if err != nil {
				return err
			}
			if h >= start+count {
				return nil
			}
		}
	}
}

// Close shuts the websocket down and waits for the read loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.wsConn, c.wsDone
	c.wsConn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	<-done
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.metrics != nil {
		endpoint := path
		if i := strings.IndexByte(endpoint, '?'); i >= 0 {
			endpoint = endpoint[:i]
		}
		timer := prometheus.NewTimer(c.metrics.LiveRequestDur.WithLabelValues(endpoint))
		defer timer.ObserveDuration()
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
