package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsTestServer is a minimal logsSubscribe endpoint. Every subscribe
// request is confirmed with a fresh subscription ID; notifications are
// pushed by the test.
type wsTestServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	nextSub atomic.Int64
	subs    chan int64
}

func newWSTestServer(t *testing.T) (*wsTestServer, *httptest.Server) {
	s := &wsTestServer{t: t, subs: make(chan int64, 16)}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *wsTestServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	go func() {
		for {
			var req struct {
				ID     uint64 `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Method == "logsSubscribe" {
				sub := s.nextSub.Add(1)
				s.write(conn, map[string]any{
					"jsonrpc": "2.0",
					"id":      req.ID,
					"result":  sub,
				})
				s.subs <- sub
			}
		}
	}()
}

func (s *wsTestServer) write(conn *websocket.Conn, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		s.t.Logf("server write: %v", err)
	}
}

// notify pushes one logsNotification on the most recent connection.
func (s *wsTestServer) notify(sub int64, signature string, txErr any) {
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()

	s.write(conn, map[string]any{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]any{
			"subscription": sub,
			"result": map[string]any{
				"context": map[string]any{"slot": 123},
				"value": map[string]any{
					"signature": signature,
					"logs":      []string{"Program log: test"},
					"err":       txErr,
				},
			},
		},
	})
}

// dropConnections severs every open connection to force a reconnect.
func (s *wsTestServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testWSConfig() *WSConfig {
	return &WSConfig{
		ReconnectDelay:   20 * time.Millisecond,
		Commitment:       "confirmed",
		PingInterval:     time.Second,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     time.Second,
		SubscribeTimeout: 2 * time.Second,
	}
}

func TestWSConn_SubscribeAndReceive(t *testing.T) {
	server, srv := newWSTestServer(t)

	client, err := NewWSConn(context.Background(), wsURL(srv), testWSConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWSConn: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"MintAddr"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	sub := <-server.subs

	server.notify(sub, "sig1", nil)

	select {
	case notif := <-ch:
		if notif.Signature != "sig1" {
			t.Errorf("Signature = %q, want sig1", notif.Signature)
		}
		if notif.Slot != 123 {
			t.Errorf("Slot = %d, want 123", notif.Slot)
		}
		if notif.Err != nil {
			t.Errorf("Err = %v, want nil", notif.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWSConn_FailedTransactionCarriesErr(t *testing.T) {
	server, srv := newWSTestServer(t)

	client, err := NewWSConn(context.Background(), wsURL(srv), testWSConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWSConn: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"MintAddr"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	sub := <-server.subs

	server.notify(sub, "sigFailed", map[string]any{"InstructionError": []any{0, "Custom"}})

	select {
	case notif := <-ch:
		if notif.Err == nil {
			t.Error("Err must be non-nil for failed transactions")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWSConn_ReconnectsAndResubscribes(t *testing.T) {
	server, srv := newWSTestServer(t)

	client, err := NewWSConn(context.Background(), wsURL(srv), testWSConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWSConn: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"MintAddr"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	<-server.subs

	server.dropConnections()

	// The client redials after the fixed delay and replays the
	// subscription on the new connection.
	var newSub int64
	select {
	case newSub = <-server.subs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for resubscribe")
	}

	if got := client.Reconnects(); got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}

	// The original channel keeps delivering. The notification is resent
	// until the client has remapped the replayed subscription.
	deadline := time.After(5 * time.Second)
	for {
		server.notify(newSub, "sigAfterReconnect", nil)
		select {
		case notif := <-ch:
			if notif.Signature != "sigAfterReconnect" {
				t.Errorf("Signature = %q", notif.Signature)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for post-reconnect notification")
		}
	}
}

func TestWSConn_CloseClosesChannels(t *testing.T) {
	server, srv := newWSTestServer(t)

	client, err := NewWSConn(context.Background(), wsURL(srv), testWSConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWSConn: %v", err)
	}

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"MintAddr"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	<-server.subs

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel must be closed, got a value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// Close is idempotent.
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
