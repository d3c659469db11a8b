package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/solana"
)

type scriptedWS struct {
	mu       sync.Mutex
	channels []chan solana.LogNotification
	calls    int
}

func (s *scriptedWS) SubscribeLogs(_ context.Context, _ solana.LogsFilter) (<-chan solana.LogNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan solana.LogNotification, 16)
	s.channels = append(s.channels, ch)
	s.calls++
	return ch, nil
}

func (s *scriptedWS) Close() error { return nil }

func (s *scriptedWS) subscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedWS) channel(i int) chan solana.LogNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.channels) {
		return nil
	}
	return s.channels[i]
}

type fakeParser struct {
	events map[string]*domain.BuyEvent
	calls  atomic.Int64
}

func (f *fakeParser) Extract(_ context.Context, signature string) (*domain.BuyEvent, error) {
	f.calls.Add(1)
	return f.events[signature], nil
}

type admitAll struct{}

func (admitAll) Admit(_ *domain.BuyEvent) bool { return true }

type admitNone struct{}

func (admitNone) Admit(_ *domain.BuyEvent) bool { return false }

type countingDispatcher struct {
	mu     sync.Mutex
	events []*domain.BuyEvent
}

func (c *countingDispatcher) Dispatch(_ context.Context, ev *domain.BuyEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *countingDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func buyEvent(sig string) *domain.BuyEvent {
	return &domain.BuyEvent{
		Signature:   sig,
		Buyer:       "BuyerAddr",
		QuoteAmount: decimal.NewFromFloat(2.5),
		AssetAmount: decimal.NewFromInt(1000),
		ObservedAt:  time.Now(),
	}
}

func testConfig() Config {
	return Config{
		Mint:             "MintAddr",
		GracePeriod:      time.Millisecond,
		ResubscribeDelay: 5 * time.Millisecond,
		ProcessTimeout:   time.Second,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcher_DispatchesExtractedBuy(t *testing.T) {
	ws := &scriptedWS{}
	parser := &fakeParser{events: map[string]*domain.BuyEvent{"sig1": buyEvent("sig1")}}
	dispatcher := &countingDispatcher{}

	w := NewWatcher(ws, parser, admitAll{}, dispatcher, nil, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return ws.subscribeCalls() >= 1 })
	ws.channel(0) <- solana.LogNotification{Signature: "sig1", Slot: 100}

	waitFor(t, time.Second, func() bool { return dispatcher.count() == 1 })

	cancel()
	<-done

	if got := dispatcher.events[0].Signature; got != "sig1" {
		t.Errorf("dispatched signature = %q, want sig1", got)
	}
}

func TestWatcher_SkipsFailedTransactions(t *testing.T) {
	ws := &scriptedWS{}
	parser := &fakeParser{events: map[string]*domain.BuyEvent{"sig1": buyEvent("sig1")}}
	dispatcher := &countingDispatcher{}

	w := NewWatcher(ws, parser, admitAll{}, dispatcher, nil, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return ws.subscribeCalls() >= 1 })
	ws.channel(0) <- solana.LogNotification{Signature: "sig1", Err: map[string]any{"InstructionError": []any{}}}
	ws.channel(0) <- solana.LogNotification{Signature: ""}

	// Give the loop a moment; nothing must reach the parser.
	time.Sleep(20 * time.Millisecond)
	if parser.calls.Load() != 0 {
		t.Errorf("parser calls = %d, want 0", parser.calls.Load())
	}

	cancel()
	<-done
}

func TestWatcher_SuppressedEventNotDispatched(t *testing.T) {
	ws := &scriptedWS{}
	parser := &fakeParser{events: map[string]*domain.BuyEvent{"sig1": buyEvent("sig1")}}
	dispatcher := &countingDispatcher{}

	w := NewWatcher(ws, parser, admitNone{}, dispatcher, nil, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return ws.subscribeCalls() >= 1 })
	ws.channel(0) <- solana.LogNotification{Signature: "sig1"}

	waitFor(t, time.Second, func() bool { return parser.calls.Load() == 1 })
	time.Sleep(10 * time.Millisecond)
	if dispatcher.count() != 0 {
		t.Errorf("dispatch count = %d, want 0", dispatcher.count())
	}

	cancel()
	<-done
}

func TestWatcher_ResubscribesAfterStreamClose(t *testing.T) {
	ws := &scriptedWS{}
	parser := &fakeParser{events: map[string]*domain.BuyEvent{"sig2": buyEvent("sig2")}}
	dispatcher := &countingDispatcher{}

	w := NewWatcher(ws, parser, admitAll{}, dispatcher, nil, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return ws.subscribeCalls() >= 1 })
	close(ws.channel(0))

	// The loop reopens the stream and keeps working.
	waitFor(t, time.Second, func() bool { return ws.subscribeCalls() >= 2 })
	ws.channel(1) <- solana.LogNotification{Signature: "sig2"}
	waitFor(t, time.Second, func() bool { return dispatcher.count() == 1 })

	cancel()
	<-done
}
