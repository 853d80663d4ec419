package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeConn проигрывает заранее заданные кадры и запоминает записи
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	writes []map[string]string
	closed bool
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("use of closed connection")
	}
	if len(c.frames) == 0 {
		return nil, errors.New("stream ended")
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	return frame, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := v.(map[string]string); ok {
		cp := make(map[string]string, len(m))
		for k, vv := range m {
			cp[k] = vv
		}
		c.writes = append(c.writes, cp)
	}
	return nil
}

func (c *fakeConn) Ping(deadline time.Time) error   { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) subscribedPairs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pairs []string
	for _, w := range c.writes {
		if w["event"] == "subscribe" {
			pairs = append(pairs, w["pair"])
		}
	}
	return pairs
}

// fakeTransport выдаёт соединения по очереди
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (t *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dials >= len(t.conns) {
		return nil, errors.New("no more connections scripted")
	}
	conn := t.conns[t.dials]
	t.dials++
	return conn, nil
}

func testConfig(symbols ...string) Config {
	return Config{
		Name:             "spot",
		URL:              "wss://example/feed",
		Symbols:          symbols,
		InitialDelay:     time.Millisecond,
		MaxDelay:         2 * time.Millisecond,
		JitterFactor:     0,
		SubscribeTimeout: time.Second,
		ReadTimeout:      time.Second,
	}
}

func ackFrame(pair string) []byte {
	return []byte(`{"event":"subscribe","pair":"` + pair + `","success":true}`)
}

func quoteFrame(pair, bid, ask string) []byte {
	return []byte(`{"event":"FETCH_ORDER_BOOK_CS_PRO","pair":"` + pair +
		`","data":{"bid":` + bid + `,"ask":` + ask + `}}`)
}

func TestFeedSubscribesAndDeliversQuotes(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{
		ackFrame("BTC/INR"),
		quoteFrame("BTC/INR", "100", "100.5"),
	}}
	transport := &fakeTransport{conns: []*fakeConn{conn}}

	cfg := testConfig("BTC/INR")
	cfg.MaxRetries = 1 // одна сессия, затем терминальный отказ

	var mu sync.Mutex
	var got []Message
	f := New(cfg, transport, func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}, zap.NewNop())

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should return error after retry budget exhausted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("handler received %d messages, want 1", len(got))
	}
	if got[0].Kind != KindQuote || got[0].Symbol != "BTC/INR" {
		t.Errorf("message = %+v, want quote for BTC/INR", got[0])
	}
	if got[0].Bid != 100 || got[0].Ask != 100.5 {
		t.Errorf("bid/ask = %f/%f, want 100/100.5", got[0].Bid, got[0].Ask)
	}
}

func TestFeedResubscribesAfterReconnect(t *testing.T) {
	first := &fakeConn{frames: [][]byte{ackFrame("BTC/INR")}}
	second := &fakeConn{frames: [][]byte{ackFrame("BTC/INR")}}
	transport := &fakeTransport{conns: []*fakeConn{first, second}}

	cfg := testConfig("BTC/INR")
	cfg.MaxRetries = 2
	f := New(cfg, transport, nil, zap.NewNop())

	_ = f.Run(context.Background())

	if transport.dials != 2 {
		t.Fatalf("dials = %d, want 2", transport.dials)
	}
	for i, conn := range []*fakeConn{first, second} {
		pairs := conn.subscribedPairs()
		if len(pairs) != 1 || pairs[0] != "BTC/INR" {
			t.Errorf("session %d subscriptions = %v, want [BTC/INR]", i, pairs)
		}
	}
	if f.Reconnects() < 1 {
		t.Error("Reconnects() = 0, want at least 1")
	}
}

func TestFeedFailsTerminallyAfterMaxRetries(t *testing.T) {
	transport := &fakeTransport{} // каждый Dial падает

	cfg := testConfig("BTC/INR")
	cfg.MaxRetries = 3
	f := New(cfg, transport, nil, zap.NewNop())

	err := f.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail after exhausting retries")
	}
	if f.Status() != StatusFailed {
		t.Errorf("Status() = %v, want %v", f.Status(), StatusFailed)
	}
}

func TestFeedStopsOnContextCancel(t *testing.T) {
	transport := &fakeTransport{}

	cfg := testConfig("BTC/INR")
	f := New(cfg, transport, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if f.Status() == StatusFailed {
		t.Error("cancelled feed must not be marked failed")
	}
}

func TestFeedCountsDroppedFrames(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{
		ackFrame("BTC/INR"),
		[]byte(`{"event":"SOMETHING_NEW"}`),
		[]byte(`not json at all`),
	}}
	transport := &fakeTransport{conns: []*fakeConn{conn}}

	cfg := testConfig("BTC/INR")
	cfg.MaxRetries = 1
	f := New(cfg, transport, nil, zap.NewNop())

	_ = f.Run(context.Background())

	if f.DroppedFrames() != 2 {
		t.Errorf("DroppedFrames() = %d, want 2", f.DroppedFrames())
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		to    Status
		valid bool
	}{
		{"disconnected to connecting", StatusDisconnected, StatusConnecting, true},
		{"connecting to subscribing", StatusConnecting, StatusSubscribing, true},
		{"subscribing to streaming", StatusSubscribing, StatusStreaming, true},
		{"streaming to reconnecting", StatusStreaming, StatusReconnecting, true},
		{"reconnecting to connecting", StatusReconnecting, StatusConnecting, true},
		{"reconnecting to failed", StatusReconnecting, StatusFailed, true},
		{"failed is terminal", StatusFailed, StatusConnecting, false},
		{"disconnected cannot stream", StatusDisconnected, StatusStreaming, false},
		{"streaming cannot fail directly", StatusStreaming, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidTransition(tt.from, tt.to); got != tt.valid {
				t.Errorf("isValidTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}
