package bot

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"fundingbot/internal/exchange"
	"fundingbot/internal/marketdata"
	"fundingbot/internal/models"
)

func newTestEngine(t *testing.T) (*Engine, *marketdata.Cache) {
	t.Helper()
	sim := exchange.NewSimulated(1000000)
	cache := marketdata.NewCache()
	detector := NewDetector(detectorConfig(), cache)
	gate := NewRiskGate(RiskConfig{MaxSlippagePercent: 0.3, MaxOpenPositions: 2})
	coordinator := newTestCoordinator(sim, nil)
	manager := NewManager(coordinator, cache, nil, zap.NewNop())

	e := NewEngine(EngineConfig{
		Symbols:         []string{"BTC/INR"},
		ScanInterval:    30 * time.Second,
		MonitorInterval: 60 * time.Second,
		MaxQuoteAge:     30 * time.Second,
		ReadyTimeout:    time.Minute,
	}, cache, detector, gate, coordinator, manager, nil, nil, zap.NewNop())
	return e, cache
}

func TestEngineScanOpensPosition(t *testing.T) {
	e, cache := newTestEngine(t)
	fillMarket(cache, "BTC/INR", 100, 100.3, 1.5, time.Now())

	e.scanOnce(context.Background())

	if e.manager.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", e.manager.ActiveCount())
	}
	active, _ := e.Positions()
	if active[0].State != models.PositionStateOpen {
		t.Errorf("State = %s, want open", active[0].State)
	}

	stats := e.Stats()
	if stats.TotalTrades != 1 || stats.FailedTrades != 0 {
		t.Errorf("stats = %+v, want 1 trade, 0 failed", stats)
	}
}

func TestEngineScanNoOpportunity(t *testing.T) {
	e, cache := newTestEngine(t)
	// ставка ниже порога: входа быть не должно
	fillMarket(cache, "BTC/INR", 100, 100.3, 0.001, time.Now())

	e.scanOnce(context.Background())

	if e.manager.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", e.manager.ActiveCount())
	}
}

func TestEngineRiskGateBlocksEntry(t *testing.T) {
	e, cache := newTestEngine(t)
	now := time.Now()
	// выгодная возможность, но широченный стакан спота
	cache.Apply("BTC/INR", marketdata.Update{
		Spot:    &marketdata.Quote{Symbol: "BTC/INR", Bid: 95, Ask: 100, ObservedAt: now},
		Futures: &marketdata.Quote{Symbol: "BTC/INR", Bid: 100.3, Ask: 100.4, ObservedAt: now},
		Funding: &marketdata.FundingSnapshot{Symbol: "BTC/INR", Rate: 1.5, ObservedAt: now},
	})

	e.scanOnce(context.Background())

	if e.manager.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after risk rejection", e.manager.ActiveCount())
	}
	if e.Stats().RiskRejected != 1 {
		t.Errorf("RiskRejected = %d, want 1", e.Stats().RiskRejected)
	}
}

func TestEngineOpportunitiesSnapshot(t *testing.T) {
	e, cache := newTestEngine(t)
	fillMarket(cache, "BTC/INR", 100, 100.3, 1.5, time.Now())

	opps := e.Opportunities()
	if len(opps) != 1 || opps[0].Symbol != "BTC/INR" {
		t.Fatalf("Opportunities() = %+v, want one for BTC/INR", opps)
	}
}
