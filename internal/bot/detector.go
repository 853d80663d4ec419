package bot

import (
	"sync"
	"time"

	"fundingbot/internal/marketdata"
	"fundingbot/internal/models"
)

// DetectorConfig - параметры отбора возможностей
type DetectorConfig struct {
	MinFundingRate          float64       // минимальная ставка финансирования, %
	MinSpreadPercent        float64       // нижняя граница спреда фьючерс/спот, %
	MaxSpreadPercent        float64       // верхняя граница спреда, %
	FundingIntervalsPerYear float64       // для годовой доходности
	MaxQuoteAge             time.Duration // старше - данные протухли
	TTL                     time.Duration // срок жизни мемоизированной оценки
}

// memoEntry - закешированный результат оценки символа.
// Отрицательный результат (nil) кешируется наравне с положительным.
type memoEntry struct {
	opp        *models.Opportunity
	computedAt time.Time
}

// Detector оценивает символы на пригодность для входа.
// Результат оценки мемоизируется на TTL: повторный запрос внутри
// окна возвращает прежний ответ, даже если котировки уже изменились.
// Это намеренно - оценка стабильна в пределах окна, свежесть
// обеспечивается коротким TTL.
type Detector struct {
	cfg   DetectorConfig
	cache *marketdata.Cache

	mu   sync.Mutex
	memo map[string]memoEntry
	now  func() time.Time
}

// NewDetector создаёт детектор поверх кеша состояния рынка
func NewDetector(cfg DetectorConfig, cache *marketdata.Cache) *Detector {
	return &Detector{
		cfg:   cfg,
		cache: cache,
		memo:  make(map[string]memoEntry),
		now:   time.Now,
	}
}

// Evaluate возвращает возможность для символа или nil.
// nil означает: условий для входа нет либо данные неполны/протухли.
func (d *Detector) Evaluate(symbol string) *models.Opportunity {
	now := d.now()

	d.mu.Lock()
	if e, ok := d.memo[symbol]; ok && now.Sub(e.computedAt) < d.cfg.TTL {
		d.mu.Unlock()
		return e.opp
	}
	d.mu.Unlock()

	opp := d.compute(symbol, now)

	d.mu.Lock()
	d.memo[symbol] = memoEntry{opp: opp, computedAt: now}
	d.mu.Unlock()

	if opp != nil {
		OpportunitiesFound.WithLabelValues(symbol).Inc()
	}
	return opp
}

// compute выполняет свежую оценку символа
func (d *Detector) compute(symbol string, now time.Time) *models.Opportunity {
	st := d.cache.Snapshot(symbol)
	if st.Spot == nil || st.Futures == nil || st.Funding == nil {
		return nil
	}

	// протухшие данные не основание для сделки
	if now.Sub(st.Spot.ObservedAt) > d.cfg.MaxQuoteAge ||
		now.Sub(st.Futures.ObservedAt) > d.cfg.MaxQuoteAge ||
		now.Sub(st.Funding.ObservedAt) > d.cfg.MaxQuoteAge {
		return nil
	}

	// ставка должна строго превышать порог: значение ровно на пороге
	// не проходит
	if st.Funding.Rate <= d.cfg.MinFundingRate {
		return nil
	}

	// вход: покупка спота по ask, продажа фьючерса по bid
	spotPrice := st.Spot.Ask
	futuresPrice := st.Futures.Bid
	if spotPrice <= 0 || futuresPrice <= 0 {
		return nil
	}

	spread := (futuresPrice - spotPrice) / spotPrice * 100
	if spread < d.cfg.MinSpreadPercent || spread > d.cfg.MaxSpreadPercent {
		return nil
	}

	return &models.Opportunity{
		Symbol:               symbol,
		FundingRate:          st.Funding.Rate,
		SpotPrice:            spotPrice,
		FuturesPrice:         futuresPrice,
		SpreadPercent:        spread,
		ExpectedAnnualReturn: st.Funding.Rate * d.cfg.FundingIntervalsPerYear,
		ComputedAt:           now,
	}
}
