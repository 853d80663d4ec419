package bot

import (
	"testing"

	"fundingbot/internal/feed"
)

func TestAccountStateTracksBalanceAndOrders(t *testing.T) {
	a := NewAccountState()
	handle := a.Handler()

	if _, ok := a.Balance(); ok {
		t.Fatal("Balance() known before any update")
	}

	handle(feed.Message{Kind: feed.KindAccount, Balance: 12500.5, HasBalance: true})
	handle(feed.Message{Kind: feed.KindAccount, OrderID: "ord-1", OrderStatus: "open"})
	handle(feed.Message{Kind: feed.KindAccount, OrderID: "ord-1", OrderStatus: "executed"})

	if bal, ok := a.Balance(); !ok || bal != 12500.5 {
		t.Errorf("Balance() = %f (known=%v), want 12500.5", bal, ok)
	}
	if status, ok := a.OrderStatus("ord-1"); !ok || status != "executed" {
		t.Errorf("OrderStatus(ord-1) = %q (known=%v), want executed", status, ok)
	}
	if _, ok := a.OrderStatus("ord-2"); ok {
		t.Error("OrderStatus(ord-2) known, want unknown")
	}
}

func TestAccountStateIgnoresMarketFrames(t *testing.T) {
	a := NewAccountState()
	handle := a.Handler()

	handle(feed.Message{Kind: feed.KindQuote, Symbol: "BTC/INR", Bid: 100, Ask: 100.5})
	handle(feed.Message{Kind: feed.KindFunding, Symbol: "BTC/INR", Rate: 0.015})

	if _, ok := a.Balance(); ok {
		t.Error("Balance() known after market frames, want unknown")
	}
}
