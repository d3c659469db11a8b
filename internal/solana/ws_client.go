package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-buy-watcher/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the fixed delay before each reconnect attempt.
	// Reconnects are unbounded; the client never gives up.
	ReconnectDelay time.Duration
	// Commitment is the confirmation level requested on subscribe.
	Commitment string
	// PingInterval is the interval for keepalive ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:   5 * time.Second,
		Commitment:       "confirmed",
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
	}
}

// WSConn implements WSClient using gorilla/websocket. Subscriptions
// survive connection loss: after the fixed reconnect delay the client
// redials and resubscribes every active filter, delivering notifications
// on the original channels.
type WSConn struct {
	endpoint string
	cfg      WSConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed atomic.Bool
	reqID  atomic.Uint64

	// subs maps subscription ID to delivery channel; filters keeps the
	// original filter for resubscription after reconnect.
	subsMu  sync.RWMutex
	subs    map[int64]chan LogNotification
	filters map[int64]LogsFilter

	// pending maps request ID to the channel waiting for a subscription ID.
	pendingMu sync.Mutex
	pending   map[uint64]chan int64

	reconnecting atomic.Bool
	reconnects   atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSConn dials the endpoint and starts the read and ping loops.
func NewWSConn(ctx context.Context, endpoint string, cfg *WSConfig, logger zerolog.Logger) (*WSConn, error) {
	conf := DefaultWSConfig()
	if cfg != nil {
		conf = *cfg
	}
	if conf.Commitment == "" {
		conf.Commitment = "confirmed"
	}

	c := &WSConn{
		endpoint: endpoint,
		cfg:      conf,
		logger:   logger.With().Str("component", "ws_client").Logger(),
		subs:     make(map[int64]chan LogNotification),
		filters:  make(map[int64]LogsFilter),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSConn) dial(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeLogs subscribes to logs mentioning the filter addresses and
// returns a channel of notifications. The channel stays valid across
// reconnects and is closed only when the client is closed.
func (c *WSConn) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := c.sendSubscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Large buffer absorbs bursts; delivery blocks rather than drops.
	ch := make(chan LogNotification, 10000)

	c.subsMu.Lock()
	c.subs[subID] = ch
	c.filters[subID] = filter
	c.subsMu.Unlock()

	return ch, nil
}

// sendSubscribe issues a logsSubscribe request and waits for the
// subscription ID. Shared by SubscribeLogs and the resubscribe path.
func (c *WSConn) sendSubscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.reqID.Add(1)

	mentions := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentions["mentions"] = filter.Mentions
	} else {
		mentions["all"] = nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": c.cfg.Commitment},
		},
	}

	confirm := make(chan int64, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = confirm
	c.pendingMu.Unlock()

	abandon := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		abandon()
		return 0, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		abandon()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirm:
		return subID, nil
	case <-time.After(c.cfg.SubscribeTimeout):
		abandon()
		return 0, fmt.Errorf("subscription timeout after %v", c.cfg.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		abandon()
		return 0, ctx.Err()
	}
}

// Close closes the connection and all subscription channels.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	return nil
}

// Reconnects reports how many reconnect attempts have completed a redial.
func (c *WSConn) Reconnects() int64 {
	return c.reconnects.Load()
}

func (c *WSConn) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.logger.Warn().Err(err).
					Dur("delay", c.cfg.ReconnectDelay).
					Msg("connection lost, scheduling reconnect")
				go c.reconnect()
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		c.handleMessage(message)
	}
}

// reconnect waits the fixed delay, redials, and resubscribes all active
// filters. On failure the next read error schedules another attempt, so
// retries continue indefinitely.
func (c *WSConn) reconnect() {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(c.cfg.ReconnectDelay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("reconnect dial failed, will retry")
		return
	}

	c.reconnects.Add(1)
	observability.RecordReconnect()
	c.resubscribeAll()
	c.logger.Info().Msg("reconnected and resubscribed")
}

func (c *WSConn) resubscribeAll() {
	c.subsMu.RLock()
	filters := make(map[int64]LogsFilter, len(c.filters))
	for id, f := range c.filters {
		filters[id] = f
	}
	c.subsMu.RUnlock()

	for oldID, filter := range filters {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.sendSubscribe(ctx, filter)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Int64("sub_id", oldID).Msg("resubscribe failed")
			continue
		}

		c.subsMu.Lock()
		if ch, ok := c.subs[oldID]; ok && newID != oldID {
			delete(c.subs, oldID)
			delete(c.filters, oldID)
			c.subs[newID] = ch
			c.filters[newID] = filter
		}
		c.subsMu.Unlock()
	}
}

// handleMessage dispatches one raw frame. Unparsable frames are dropped.
func (c *WSConn) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" {
		c.deliver(&notif)
		return
	}

	var errResp struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Warn().
			Int("code", errResp.Error.Code).
			Str("message", errResp.Error.Message).
			Msg("rpc error frame")
	}
}

func (c *WSConn) deliver(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	out := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		out.Slot = notif.Params.Result.Context.Slot
	}

	c.subsMu.RLock()
	ch, ok := c.subs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		// Block rather than drop; the buffer absorbs bursts.
		select {
		case ch <- out:
		case <-c.done:
		}
	}
}

func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				// A failed ping surfaces as a read error; the reader
				// owns reconnection.
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Verify interface compliance at compile time.
var _ WSClient = (*WSConn)(nil)

// WebSocket wire types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
