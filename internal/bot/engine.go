package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fundingbot/internal/exchange"
	"fundingbot/internal/feed"
	"fundingbot/internal/marketdata"
	"fundingbot/internal/models"
)

// EngineConfig - параметры главного цикла
type EngineConfig struct {
	Symbols         []string
	ScanInterval    time.Duration // период поиска возможностей
	MonitorInterval time.Duration // период проверки позиций
	MaxQuoteAge     time.Duration
	ReadyTimeout    time.Duration // ожидание первых данных перед торговлей
}

// Engine связывает фиды, детектор, риск-гейт, координатор и
// менеджер позиций в работающего бота
type Engine struct {
	cfg         EngineConfig
	cache       *marketdata.Cache
	detector    *Detector
	gate        *RiskGate
	coordinator *Coordinator
	manager     *Manager
	feeds       []*feed.Feed
	account     *AccountState
	logger      *zap.Logger

	startedAt    time.Time
	scanRunning  atomic.Bool
	openedEver   atomic.Bool
	totalTrades  atomic.Int64
	failedTrades atomic.Int64
	riskRejected atomic.Int64
	running      atomic.Bool
}

// NewEngine создаёт движок из готовых компонентов.
// account может быть nil (симулятор не ведёт пользовательский поток).
func NewEngine(cfg EngineConfig, cache *marketdata.Cache, detector *Detector, gate *RiskGate,
	coordinator *Coordinator, manager *Manager, feeds []*feed.Feed, account *AccountState,
	logger *zap.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		cache:       cache,
		detector:    detector,
		gate:        gate,
		coordinator: coordinator,
		manager:     manager,
		feeds:       feeds,
		account:     account,
		logger:      logger,
	}
}

// FeedHandler возвращает обработчик кадров фида, пишущий в кеш.
// market определяет, чьи котировки несёт фид: спота или фьючерса.
func FeedHandler(cache *marketdata.Cache, market string) func(feed.Message) {
	return func(msg feed.Message) {
		switch msg.Kind {
		case feed.KindQuote:
			q := &marketdata.Quote{
				Symbol:     msg.Symbol,
				Bid:        msg.Bid,
				Ask:        msg.Ask,
				ObservedAt: msg.ReceivedAt,
			}
			if market == exchange.MarketSpot {
				cache.Apply(msg.Symbol, marketdata.Update{Spot: q})
			} else {
				cache.Apply(msg.Symbol, marketdata.Update{Futures: q})
			}
		case feed.KindFunding:
			cache.Apply(msg.Symbol, marketdata.Update{Funding: &marketdata.FundingSnapshot{
				Symbol:           msg.Symbol,
				Rate:             msg.Rate,
				NextSettlementAt: msg.NextAt,
				ObservedAt:       msg.ReceivedAt,
			}})
		}
	}
}

// Run запускает бота и блокируется до отмены контекста или
// терминального отказа. Отказ фида до первой открытой позиции
// фатален: торговать вслепую нельзя, а терять нечего.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = time.Now()
	e.running.Store(true)
	defer e.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedErrs := make(chan error, len(e.feeds))
	for _, f := range e.feeds {
		f := f
		go func() {
			err := f.Run(ctx)
			if ctx.Err() == nil {
				feedErrs <- err
			}
		}()
	}
	go e.exportFeedMetrics(ctx)

	if err := e.waitReady(ctx, feedErrs); err != nil {
		return err
	}
	e.logger.Info("market data ready, trading enabled",
		zap.Strings("symbols", e.cfg.Symbols))

	go e.manager.Run(ctx, e.cfg.MonitorInterval)

	scanTicker := time.NewTicker(e.cfg.ScanInterval)
	defer scanTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.manager.MarkShutdown(context.Background())
			e.logger.Info("engine stopped")
			return nil

		case err := <-feedErrs:
			if e.openedEver.Load() {
				// позиции уже есть: продолжаем на оставшихся фидах,
				// монитор должен довести их до закрытия
				e.logger.Error("feed failed, continuing to manage open positions",
					zap.Error(err))
				continue
			}
			e.manager.MarkShutdown(context.Background())
			return fmt.Errorf("feed failed before any position was opened: %w", err)

		case <-scanTicker.C:
			if !e.scanRunning.CompareAndSwap(false, true) {
				ScanSkipped.WithLabelValues("scan").Inc()
				e.logger.Debug("scan tick skipped, previous run in progress")
				continue
			}
			go func() {
				defer e.scanRunning.Store(false)
				e.scanOnce(ctx)
			}()
		}
	}
}

// waitReady ждёт полного набора свежих данных по всем символам
func (e *Engine) waitReady(ctx context.Context, feedErrs <-chan error) error {
	deadline := time.Now().Add(e.cfg.ReadyTimeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedErrs:
			return fmt.Errorf("feed failed while waiting for market data: %w", err)
		case <-ticker.C:
			if e.cache.IsReady(e.cfg.Symbols, e.cfg.MaxQuoteAge, time.Now()) {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("market data not ready within %v", e.cfg.ReadyTimeout)
			}
		}
	}
}

// scanOnce один раз проходит по всем символам в поиске входа
func (e *Engine) scanOnce(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}

		opp := e.detector.Evaluate(symbol)
		if opp == nil {
			continue
		}

		e.logger.Info("opportunity detected",
			zap.String("symbol", opp.Symbol),
			zap.Float64("funding_rate", opp.FundingRate),
			zap.Float64("spread_percent", opp.SpreadPercent),
			zap.Float64("expected_annual_return", opp.ExpectedAnnualReturn))

		if err := e.gate.CheckEntry(e.cache.Snapshot(symbol), e.manager.ActiveCount()); err != nil {
			e.riskRejected.Add(1)
			e.logger.Info("entry rejected by risk gate",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}

		pos, err := e.coordinator.OpenPosition(ctx, opp)
		e.totalTrades.Add(1)
		if err != nil {
			e.failedTrades.Add(1)
		}
		if pos == nil {
			continue
		}

		if pos.State == models.PositionStateOpen {
			e.openedEver.Store(true)
		}
		e.manager.Register(ctx, pos)
	}
}

// exportFeedMetrics периодически выгружает счётчики фидов в Prometheus
func (e *Engine) exportFeedMetrics(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	last := make(map[string]struct{ reconnects, dropped int64 })
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, f := range e.feeds {
				st := f.State()
				RecordFeedState(st.Name, int(f.Status()))

				prev := last[st.Name]
				if d := f.Reconnects() - prev.reconnects; d > 0 {
					FeedReconnects.WithLabelValues(st.Name).Add(float64(d))
				}
				if d := f.DroppedFrames() - prev.dropped; d > 0 {
					FeedDroppedFrames.WithLabelValues(st.Name).Add(float64(d))
				}
				last[st.Name] = struct{ reconnects, dropped int64 }{f.Reconnects(), f.DroppedFrames()}
			}
		}
	}
}

// Stats возвращает агрегированную статистику бота
func (e *Engine) Stats() models.BotStats {
	stats := models.BotStats{
		Running:         e.running.Load(),
		ActivePositions: e.manager.ActiveCount(),
		TotalTrades:     e.totalTrades.Load(),
		FailedTrades:    e.failedTrades.Load(),
		RiskRejected:    e.riskRejected.Load(),
		StartedAt:       e.startedAt,
	}
	if !e.startedAt.IsZero() {
		stats.UptimeSeconds = time.Since(e.startedAt).Seconds()
	}
	if e.account != nil {
		if bal, ok := e.account.Balance(); ok {
			stats.Balance = &bal
		}
	}
	return stats
}

// FeedStates возвращает снимки состояния всех фидов
func (e *Engine) FeedStates() []feed.ConnectionState {
	out := make([]feed.ConnectionState, 0, len(e.feeds))
	for _, f := range e.feeds {
		out = append(out, f.State())
	}
	return out
}

// Opportunities возвращает текущие оценки по всем символам
func (e *Engine) Opportunities() []models.Opportunity {
	var out []models.Opportunity
	for _, symbol := range e.cfg.Symbols {
		if opp := e.detector.Evaluate(symbol); opp != nil {
			out = append(out, *opp)
		}
	}
	return out
}

// Positions возвращает живые позиции и историю
func (e *Engine) Positions() (active, history []models.Position) {
	return e.manager.Active(), e.manager.History()
}
