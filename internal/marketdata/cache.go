// Package marketdata хранит последнее известное состояние рынка
// по каждому символу: котировки спота и фьючерса плюс ставка
// финансирования. Обновления приходят из потоковых фидов,
// чтения - из детектора возможностей и монитора позиций.
package marketdata

import (
	"sync"
	"time"
)

// Quote - лучшие цены покупки/продажи
type Quote struct {
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	ObservedAt time.Time `json:"observed_at"`
}

// FundingSnapshot - ставка финансирования на момент наблюдения
type FundingSnapshot struct {
	Symbol           string    `json:"symbol"`
	Rate             float64   `json:"rate"` // % за интервал выплаты
	NextSettlementAt time.Time `json:"next_settlement_at,omitempty"`
	ObservedAt       time.Time `json:"observed_at"`
}

// MarketState - снимок всего известного о символе
type MarketState struct {
	Symbol  string           `json:"symbol"`
	Spot    *Quote           `json:"spot,omitempty"`
	Futures *Quote           `json:"futures,omitempty"`
	Funding *FundingSnapshot `json:"funding,omitempty"`
}

// Update - частичное обновление состояния символа.
// nil-поля не трогают существующие значения.
type Update struct {
	Spot    *Quote
	Futures *Quote
	Funding *FundingSnapshot
}

// entry - состояние одного символа под собственным мьютексом.
// Блокировка на символ, а не на весь кеш: обновления BTC не
// задерживают чтения по ETH.
type entry struct {
	mu      sync.RWMutex
	spot    *Quote
	futures *Quote
	funding *FundingSnapshot
}

// Cache - потокобезопасное хранилище состояния рынка
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewCache создаёт пустой кеш
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entryFor(symbol string) *entry {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[symbol]; ok {
		return e
	}
	e = &entry{}
	c.entries[symbol] = e
	return e
}

// Apply применяет частичное обновление к символу
func (c *Cache) Apply(symbol string, u Update) {
	e := c.entryFor(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.Spot != nil {
		q := *u.Spot
		e.spot = &q
	}
	if u.Futures != nil {
		q := *u.Futures
		e.futures = &q
	}
	if u.Funding != nil {
		f := *u.Funding
		e.funding = &f
	}
}

// Snapshot возвращает копию состояния символа.
// Отсутствующие данные остаются nil-полями.
func (c *Cache) Snapshot(symbol string) MarketState {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()

	st := MarketState{Symbol: symbol}
	if !ok {
		return st
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.spot != nil {
		q := *e.spot
		st.Spot = &q
	}
	if e.futures != nil {
		q := *e.futures
		st.Futures = &q
	}
	if e.funding != nil {
		f := *e.funding
		st.Funding = &f
	}
	return st
}

// Symbols возвращает символы, по которым есть хоть какие-то данные
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for s := range c.entries {
		out = append(out, s)
	}
	return out
}

// IsReady проверяет, что по всем символам есть полный и свежий
// набор данных: спот, фьючерс и ставка финансирования не старше maxAge
func (c *Cache) IsReady(symbols []string, maxAge time.Duration, now time.Time) bool {
	for _, s := range symbols {
		st := c.Snapshot(s)
		if st.Spot == nil || st.Futures == nil || st.Funding == nil {
			return false
		}
		if now.Sub(st.Spot.ObservedAt) > maxAge ||
			now.Sub(st.Futures.ObservedAt) > maxAge ||
			now.Sub(st.Funding.ObservedAt) > maxAge {
			return false
		}
	}
	return true
}
