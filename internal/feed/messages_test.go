package feed

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		raw      string
		wantKind Kind
	}{
		{
			name:     "subscription ack",
			raw:      `{"event":"subscribe","pair":"BTC/INR","success":true}`,
			wantKind: KindAck,
		},
		{
			name:     "order book quote",
			raw:      `{"event":"FETCH_ORDER_BOOK_CS_PRO","pair":"BTC/INR","data":{"bid":100,"ask":100.5}}`,
			wantKind: KindQuote,
		},
		{
			name:     "ticker quote",
			raw:      `{"event":"FETCH_TICKER_INFO_CS_PRO","pair":"ETH/INR","data":{"bid":50,"ask":50.1}}`,
			wantKind: KindQuote,
		},
		{
			name:     "funding rate",
			raw:      `{"event":"FETCH_FUNDING_RATE_CS_PRO","pair":"BTC/INR","data":{"funding_rate":0.015,"next_funding_time":1700000000000}}`,
			wantKind: KindFunding,
		},
		{
			name:     "balance event",
			raw:      `{"event":"FETCH_BALANCE_CS_PRO"}`,
			wantKind: KindAccount,
		},
		{
			name:     "order update event",
			raw:      `{"event":"FETCH_ORDER_UPDATE_CS_PRO"}`,
			wantKind: KindAccount,
		},
		{
			name:     "unknown event",
			raw:      `{"event":"FETCH_CANDLESTICK_CS_PRO","pair":"BTC/INR"}`,
			wantKind: KindUnrecognized,
		},
		{
			name:     "malformed json",
			raw:      `{event: nope`,
			wantKind: KindUnrecognized,
		},
		{
			name:     "quote with zero prices dropped",
			raw:      `{"event":"FETCH_ORDER_BOOK_CS_PRO","pair":"BTC/INR","data":{"bid":0,"ask":0}}`,
			wantKind: KindUnrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Classify([]byte(tt.raw), now)
			if msg.Kind != tt.wantKind {
				t.Errorf("Classify() kind = %v, want %v", msg.Kind, tt.wantKind)
			}
		})
	}
}

func TestClassifyFundingFields(t *testing.T) {
	raw := `{"event":"FETCH_FUNDING_RATE_CS_PRO","pair":"BTC_INR","data":{"funding_rate":0.015,"next_funding_time":1700000000000}}`
	msg := Classify([]byte(raw), time.Now())

	if msg.Symbol != "BTC/INR" {
		t.Errorf("Symbol = %s, want BTC/INR (normalized)", msg.Symbol)
	}
	if msg.Rate != 0.015 {
		t.Errorf("Rate = %f, want 0.015", msg.Rate)
	}
	if msg.NextAt != time.UnixMilli(1700000000000) {
		t.Errorf("NextAt = %v, want %v", msg.NextAt, time.UnixMilli(1700000000000))
	}
}

func TestClassifyOrderUpdateFields(t *testing.T) {
	raw := `{"event":"FETCH_ORDER_UPDATE_CS_PRO","data":{"order_id":"ord-42","status":"EXECUTED"}}`
	msg := Classify([]byte(raw), time.Now())

	if msg.Kind != KindAccount {
		t.Fatalf("Kind = %v, want account", msg.Kind)
	}
	if msg.OrderID != "ord-42" {
		t.Errorf("OrderID = %s, want ord-42", msg.OrderID)
	}
	if msg.OrderStatus != "executed" {
		t.Errorf("OrderStatus = %s, want executed (lowercased)", msg.OrderStatus)
	}
}

func TestClassifyBalanceFields(t *testing.T) {
	raw := `{"event":"FETCH_BALANCE_CS_PRO","data":{"main_balance":12500.5}}`
	msg := Classify([]byte(raw), time.Now())

	if msg.Kind != KindAccount {
		t.Fatalf("Kind = %v, want account", msg.Kind)
	}
	if !msg.HasBalance || msg.Balance != 12500.5 {
		t.Errorf("Balance = %f (known=%v), want 12500.5", msg.Balance, msg.HasBalance)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC/INR", "BTC/INR"},
		{"btc/inr", "BTC/INR"},
		{"BTC-INR", "BTC/INR"},
		{"BTC_INR", "BTC/INR"},
		{"BTCINR", "BTC/INR"},
		{"ethusdt", "ETH/USDT"},
		{" BTC/INR ", "BTC/INR"},
		{"", ""},
		{"WAT", "WAT"}, // нераспознанное остаётся как есть
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeSymbol(tt.in); got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
