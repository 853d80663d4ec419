package marketdata

import (
	"sync"
	"testing"
	"time"
)

func TestCacheApplyAndSnapshot(t *testing.T) {
	cache := NewCache()
	now := time.Now()

	cache.Apply("BTC/INR", Update{
		Spot: &Quote{Symbol: "BTC/INR", Bid: 99.9, Ask: 100, ObservedAt: now},
	})
	cache.Apply("BTC/INR", Update{
		Futures: &Quote{Symbol: "BTC/INR", Bid: 100.3, Ask: 100.4, ObservedAt: now},
		Funding: &FundingSnapshot{Symbol: "BTC/INR", Rate: 0.015, ObservedAt: now},
	})

	st := cache.Snapshot("BTC/INR")
	if st.Spot == nil || st.Spot.Ask != 100 {
		t.Fatalf("Spot = %+v, want ask 100", st.Spot)
	}
	if st.Futures == nil || st.Futures.Bid != 100.3 {
		t.Fatalf("Futures = %+v, want bid 100.3", st.Futures)
	}
	if st.Funding == nil || st.Funding.Rate != 0.015 {
		t.Fatalf("Funding = %+v, want rate 0.015", st.Funding)
	}
}

func TestCachePartialUpdateKeepsOldFields(t *testing.T) {
	cache := NewCache()
	now := time.Now()

	cache.Apply("BTC/INR", Update{
		Spot: &Quote{Symbol: "BTC/INR", Bid: 99, Ask: 100, ObservedAt: now},
	})
	// обновление только фьючерса не должно стереть спот
	cache.Apply("BTC/INR", Update{
		Futures: &Quote{Symbol: "BTC/INR", Bid: 100.3, Ask: 100.4, ObservedAt: now},
	})

	st := cache.Snapshot("BTC/INR")
	if st.Spot == nil {
		t.Fatal("spot quote was lost after futures-only update")
	}
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.Apply("BTC/INR", Update{
		Spot: &Quote{Symbol: "BTC/INR", Bid: 99, Ask: 100, ObservedAt: now},
	})

	st := cache.Snapshot("BTC/INR")
	st.Spot.Ask = 0 // мутация снимка не должна влиять на кеш

	if got := cache.Snapshot("BTC/INR"); got.Spot.Ask != 100 {
		t.Errorf("cache mutated through snapshot: ask = %f", got.Spot.Ask)
	}
}

func TestCacheUnknownSymbol(t *testing.T) {
	cache := NewCache()
	st := cache.Snapshot("UNKNOWN/PAIR")
	if st.Spot != nil || st.Futures != nil || st.Funding != nil {
		t.Error("snapshot of unknown symbol should have nil fields")
	}
}

func TestCacheIsReady(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-5 * time.Second)
	stale := now.Add(-2 * time.Minute)
	maxAge := 30 * time.Second

	fill := func(c *Cache, symbol string, at time.Time) {
		c.Apply(symbol, Update{
			Spot:    &Quote{Symbol: symbol, Bid: 99, Ask: 100, ObservedAt: at},
			Futures: &Quote{Symbol: symbol, Bid: 100.3, Ask: 100.4, ObservedAt: at},
			Funding: &FundingSnapshot{Symbol: symbol, Rate: 0.01, ObservedAt: at},
		})
	}

	t.Run("all fresh", func(t *testing.T) {
		cache := NewCache()
		fill(cache, "BTC/INR", fresh)
		if !cache.IsReady([]string{"BTC/INR"}, maxAge, now) {
			t.Error("IsReady() = false with full fresh data")
		}
	})

	t.Run("missing futures", func(t *testing.T) {
		cache := NewCache()
		cache.Apply("BTC/INR", Update{
			Spot:    &Quote{Symbol: "BTC/INR", Bid: 99, Ask: 100, ObservedAt: fresh},
			Funding: &FundingSnapshot{Symbol: "BTC/INR", Rate: 0.01, ObservedAt: fresh},
		})
		if cache.IsReady([]string{"BTC/INR"}, maxAge, now) {
			t.Error("IsReady() = true without futures quote")
		}
	})

	t.Run("stale spot", func(t *testing.T) {
		cache := NewCache()
		fill(cache, "BTC/INR", stale)
		if cache.IsReady([]string{"BTC/INR"}, maxAge, now) {
			t.Error("IsReady() = true with stale data")
		}
	})

	t.Run("one of two symbols missing", func(t *testing.T) {
		cache := NewCache()
		fill(cache, "BTC/INR", fresh)
		if cache.IsReady([]string{"BTC/INR", "ETH/INR"}, maxAge, now) {
			t.Error("IsReady() = true with second symbol absent")
		}
	})
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Apply("BTC/INR", Update{
					Spot: &Quote{Symbol: "BTC/INR", Bid: 99, Ask: 100, ObservedAt: now},
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cache.Snapshot("BTC/INR")
			}
		}()
	}
	wg.Wait()
}
