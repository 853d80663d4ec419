package bot

import (
	"testing"
	"time"

	"fundingbot/internal/marketdata"
)

func marketState(spotBid, spotAsk, futBid, futAsk float64) marketdata.MarketState {
	now := time.Now()
	return marketdata.MarketState{
		Symbol:  "BTC/INR",
		Spot:    &marketdata.Quote{Symbol: "BTC/INR", Bid: spotBid, Ask: spotAsk, ObservedAt: now},
		Futures: &marketdata.Quote{Symbol: "BTC/INR", Bid: futBid, Ask: futAsk, ObservedAt: now},
	}
}

func TestRiskGateCheckEntry(t *testing.T) {
	gate := NewRiskGate(RiskConfig{MaxSlippagePercent: 0.3, MaxOpenPositions: 2})

	tests := []struct {
		name    string
		state   marketdata.MarketState
		active  int
		wantErr bool
	}{
		{
			name:  "tight book, capacity available",
			state: marketState(99.9, 100, 100.3, 100.4),
		},
		{
			name:    "position cap reached",
			state:   marketState(99.9, 100, 100.3, 100.4),
			active:  2,
			wantErr: true,
		},
		{
			name:    "wide spot book",
			state:   marketState(99, 100, 100.3, 100.4),
			wantErr: true,
		},
		{
			name:    "wide futures book",
			state:   marketState(99.9, 100, 100, 101),
			wantErr: true,
		},
		{
			name:    "missing futures quote",
			state:   marketdata.MarketState{Symbol: "BTC/INR", Spot: &marketdata.Quote{Bid: 99.9, Ask: 100}},
			wantErr: true,
		},
		{
			name:    "invalid prices",
			state:   marketState(0, 0, 100.3, 100.4),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.CheckEntry(tt.state, tt.active)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBidAskSpreadPercent(t *testing.T) {
	q := &marketdata.Quote{Bid: 100, Ask: 100.2}
	got, err := bidAskSpreadPercent(q)
	if err != nil {
		t.Fatalf("bidAskSpreadPercent() error = %v", err)
	}
	if diff := got - 0.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("spread = %f, want 0.2", got)
	}
}
