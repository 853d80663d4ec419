package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fundingbot/internal/exchange"
	"fundingbot/internal/models"
	"fundingbot/pkg/retry"
)

// OrderSink принимает записи об ордерах. Реализуется репозиторием;
// nil-sink допустим (режим без персистентности).
type OrderSink interface {
	RecordOrder(ctx context.Context, order *models.OrderRecord) error
}

// CoordinatorConfig - параметры исполнения сделок
type CoordinatorConfig struct {
	PositionNotional float64       // размер позиции в котируемой валюте
	HoldingDuration  time.Duration // срок удержания до планового закрытия
	OrderTimeout     time.Duration // ожидание исполнения одной ноги
}

// Coordinator размещает и закрывает двухногие позиции.
// Обе ноги отправляются параллельно; при частичном исполнении
// исполненная нога компенсируется обратным ордером. Исход
// компенсации фиксируется всегда, в том числе неудачный:
// незаписанная нога - это незаписанный риск.
type Coordinator struct {
	cfg      CoordinatorConfig
	exchange exchange.Exchange
	sink     OrderSink
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewCoordinator создаёт координатор ордеров
func NewCoordinator(cfg CoordinatorConfig, ex exchange.Exchange, sink OrderSink, logger *zap.Logger) *Coordinator {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 10 * time.Second
	}
	return &Coordinator{
		cfg:      cfg,
		exchange: ex,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
		newID:    defaultPositionID,
	}
}

func defaultPositionID() string {
	return fmt.Sprintf("pos-%d", time.Now().UnixNano())
}

// legResult - исход размещения одной ноги
type legResult struct {
	req   exchange.OrderRequest
	order *exchange.Order
	err   error
}

// OpenPosition открывает позицию по найденной возможности.
// Возвращаемая позиция всегда ненулевая, если хотя бы одна нога
// коснулась биржи: её состояние описывает фактический исход.
// nil-позиция возвращается только когда не исполнилось ничего.
func (c *Coordinator) OpenPosition(ctx context.Context, opp *models.Opportunity) (*models.Position, error) {
	spotQty := c.cfg.PositionNotional / opp.SpotPrice
	futuresQty := c.cfg.PositionNotional / opp.FuturesPrice

	pos := &models.Position{
		ID:          c.newID(),
		Symbol:      opp.Symbol,
		FundingRate: opp.FundingRate,
		State:       models.PositionStatePending,
		OpenedAt:    c.now(),
	}

	spotReq := exchange.OrderRequest{
		Symbol: opp.Symbol, Side: exchange.SideBuy, Market: exchange.MarketSpot,
		Quantity: spotQty, Price: opp.SpotPrice,
	}
	futuresReq := exchange.OrderRequest{
		Symbol: opp.Symbol, Side: exchange.SideSell, Market: exchange.MarketFutures,
		Quantity: futuresQty, Price: opp.FuturesPrice,
	}

	spotRes, futuresRes := c.placeParallel(ctx, spotReq, futuresReq)

	c.recordLeg(ctx, pos.ID, models.OrderPurposeEntry, spotRes)
	c.recordLeg(ctx, pos.ID, models.OrderPurposeEntry, futuresRes)

	spotOK := spotRes.err == nil
	futuresOK := futuresRes.err == nil

	switch {
	case spotOK && futuresOK:
		pos.State = models.PositionStateOpen
		pos.SpotQuantity = spotRes.order.FilledQty
		pos.FuturesQuantity = futuresRes.order.FilledQty
		pos.SpotEntryPrice = spotRes.order.AvgFillPrice
		pos.FuturesEntryPrice = futuresRes.order.AvgFillPrice
		pos.ScheduledCloseAt = pos.OpenedAt.Add(c.cfg.HoldingDuration)
		RecordTrade("opened")
		c.logger.Info("position opened",
			zap.String("position_id", pos.ID),
			zap.String("symbol", pos.Symbol),
			zap.Float64("spot_qty", pos.SpotQuantity),
			zap.Float64("futures_qty", pos.FuturesQuantity))
		return pos, nil

	case !spotOK && !futuresOK:
		// ничего не исполнилось - позиции нет, остаточного риска нет
		RecordTrade("failed")
		c.logger.Error("both legs failed, no position opened",
			zap.String("symbol", opp.Symbol),
			zap.NamedError("spot_error", spotRes.err),
			zap.NamedError("futures_error", futuresRes.err))
		return nil, fmt.Errorf("open %s: spot: %v; futures: %v", opp.Symbol, spotRes.err, futuresRes.err)

	default:
		// частичное исполнение: компенсируем исполненную ногу
		filled := spotRes
		failed := futuresRes
		if futuresOK {
			filled, failed = futuresRes, spotRes
		}
		c.compensate(ctx, pos, filled)
		pos.State = models.PositionStateFailed
		RecordTrade("failed")
		c.logger.Error("partial fill, position failed",
			zap.String("position_id", pos.ID),
			zap.String("symbol", pos.Symbol),
			zap.String("filled_leg", filled.req.Market),
			zap.String("compensation", pos.Compensation),
			zap.Error(failed.err))
		return pos, fmt.Errorf("open %s: %s leg failed: %w", opp.Symbol, failed.req.Market, failed.err)
	}
}

// ClosePosition закрывает обе ноги позиции. reason записывается
// в позицию независимо от исхода.
func (c *Coordinator) ClosePosition(ctx context.Context, pos *models.Position, reason string) error {
	pos.CloseReason = reason

	spotReq := exchange.OrderRequest{
		Symbol: pos.Symbol, Side: exchange.SideSell, Market: exchange.MarketSpot,
		Quantity: pos.SpotQuantity,
	}
	futuresReq := exchange.OrderRequest{
		Symbol: pos.Symbol, Side: exchange.SideBuy, Market: exchange.MarketFutures,
		Quantity: pos.FuturesQuantity,
	}

	spotRes, futuresRes := c.placeParallel(ctx, spotReq, futuresReq)

	c.recordLeg(ctx, pos.ID, models.OrderPurposeExit, spotRes)
	c.recordLeg(ctx, pos.ID, models.OrderPurposeExit, futuresRes)

	if spotRes.err == nil && futuresRes.err == nil {
		now := c.now()
		pos.State = models.PositionStateClosed
		pos.ClosedAt = &now
		RecordTrade("closed")
		c.logger.Info("position closed",
			zap.String("position_id", pos.ID),
			zap.String("reason", reason))
		return nil
	}

	// закрытие не удалось целиком: позиция в неопределённом
	// состоянии, дальше только руками
	pos.State = models.PositionStateFailed
	if ctx.Err() != nil {
		pos.Compensation = models.CompensationUnknown
	}
	RecordTrade("close_failed")
	c.logger.Error("position close failed",
		zap.String("position_id", pos.ID),
		zap.NamedError("spot_error", spotRes.err),
		zap.NamedError("futures_error", futuresRes.err))
	return fmt.Errorf("close %s: spot: %v; futures: %v", pos.ID, spotRes.err, futuresRes.err)
}

// placeParallel отправляет обе ноги одновременно и ждёт оба исхода
func (c *Coordinator) placeParallel(ctx context.Context, a, b exchange.OrderRequest) (legResult, legResult) {
	chA := make(chan legResult, 1)
	chB := make(chan legResult, 1)

	go func() { chA <- c.placeLeg(ctx, a) }()
	go func() { chB <- c.placeLeg(ctx, b) }()

	return <-chA, <-chB
}

// placeLeg размещает одну ногу и дожидается её исполнения.
// pending-ордер опрашивается до таймаута; неисполненный к дедлайну
// отменяется, чтобы не висеть в стакане после ухода цены.
func (c *Coordinator) placeLeg(ctx context.Context, req exchange.OrderRequest) legResult {
	res := legResult{req: req}

	start := c.now()
	order, err := c.exchange.PlaceOrder(ctx, req)
	RecordOrderLatency(req.Market, req.Side, float64(c.now().Sub(start).Milliseconds()))

	if err != nil {
		res.err = err
		return res
	}
	res.order = order

	if order.Status == exchange.OrderStatusFilled {
		return res
	}
	if order.Status == exchange.OrderStatusRejected || order.Status == exchange.OrderStatusCancelled {
		res.err = fmt.Errorf("order %s %s", order.ID, order.Status)
		return res
	}

	return c.settlePending(ctx, res)
}

// settlePending опрашивает pending-ордер до терминального статуса
func (c *Coordinator) settlePending(ctx context.Context, res legResult) legResult {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.OrderTimeout)
	defer cancel()

	order, err := retry.DoWithResult(pollCtx, func() (*exchange.Order, error) {
		o, err := c.exchange.GetOrder(pollCtx, res.req.Market, res.order.ID)
		if err != nil {
			return nil, err
		}
		if o.Status == exchange.OrderStatusPending {
			return nil, fmt.Errorf("order %s still pending", o.ID)
		}
		return o, nil
	}, retry.Config{
		MaxRetries:   0, // до таймаута контекста
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
		RetryIf:      retry.RetryIfNotContext,
	})

	if err != nil {
		// ордер завис: отменяем, чтобы он не исполнился позже без нас
		cancelCtx, cancelDone := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDone()
		if cerr := c.exchange.CancelOrder(cancelCtx, res.req.Market, res.order.ID); cerr != nil {
			c.logger.Warn("failed to cancel unsettled order",
				zap.String("order_id", res.order.ID),
				zap.Error(cerr))
		}
		res.err = fmt.Errorf("order %s not settled: %w", res.order.ID, err)
		return res
	}

	res.order = order
	if order.Status != exchange.OrderStatusFilled {
		res.err = fmt.Errorf("order %s %s", order.ID, order.Status)
	}
	return res
}

// compensate закрывает исполненную ногу обратным ордером.
// Используется свежий контекст: компенсация должна пройти даже
// во время shutdown.
func (c *Coordinator) compensate(ctx context.Context, pos *models.Position, filled legResult) {
	reverseSide := exchange.SideSell
	if filled.req.Side == exchange.SideSell {
		reverseSide = exchange.SideBuy
	}
	req := exchange.OrderRequest{
		Symbol:   filled.req.Symbol,
		Side:     reverseSide,
		Market:   filled.req.Market,
		Quantity: filled.order.FilledQty,
	}

	compCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	order, err := retry.DoWithResult(compCtx, func() (*exchange.Order, error) {
		return c.exchange.PlaceOrder(compCtx, req)
	}, retry.AggressiveConfig())

	res := legResult{req: req, order: order, err: err}
	c.recordLeg(ctx, pos.ID, models.OrderPurposeCompensation, res)

	if err != nil {
		pos.Compensation = models.CompensationFailed
		RecordCompensation("failed")
		c.logger.Error("compensation failed, residual exposure remains",
			zap.String("position_id", pos.ID),
			zap.String("market", req.Market),
			zap.Float64("quantity", req.Quantity),
			zap.Error(err))
		return
	}

	pos.Compensation = models.CompensationDone
	RecordCompensation("done")
	c.logger.Warn("filled leg compensated",
		zap.String("position_id", pos.ID),
		zap.String("market", req.Market),
		zap.Float64("quantity", req.Quantity))
}

// recordLeg фиксирует исход одной ноги в хранилище
func (c *Coordinator) recordLeg(ctx context.Context, positionID, purpose string, res legResult) {
	rec := &models.OrderRecord{
		PositionID: positionID,
		Market:     res.req.Market,
		Side:       res.req.Side,
		Purpose:    purpose,
		Quantity:   res.req.Quantity,
		CreatedAt:  c.now(),
	}

	switch {
	case res.err == nil && res.order != nil:
		rec.Status = res.order.Status
		rec.PriceAvg = res.order.AvgFillPrice
		if res.order.Status == models.OrderStatusFilled {
			now := c.now()
			rec.FilledAt = &now
		}
	case ctx.Err() != nil:
		// shutdown во время размещения: исход не установлен
		rec.Status = models.OrderStatusUnknown
		rec.ErrorMessage = res.err.Error()
	default:
		rec.Status = models.OrderStatusRejected
		rec.ErrorMessage = res.err.Error()
	}

	if c.sink == nil {
		return
	}
	// запись не должна ронять торговый поток
	if err := c.sink.RecordOrder(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Error("failed to record order",
			zap.String("position_id", positionID),
			zap.String("purpose", purpose),
			zap.Error(err))
	}
}
