package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Simulated - реализация Exchange без сети. Ордера исполняются
// мгновенно по запрошенной цене (или цене, заданной SetPrice).
// Через SetFailure можно инъецировать отказы для отработки сценариев
// частичного исполнения ног.
type Simulated struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*Order
	prices   map[string]float64 // market:symbol -> цена исполнения
	failures map[string]error   // market:side -> ошибка на PlaceOrder
	balance  float64
}

// NewSimulated создаёт симулятор с заданным стартовым балансом
func NewSimulated(balance float64) *Simulated {
	return &Simulated{
		orders:   make(map[string]*Order),
		prices:   make(map[string]float64),
		failures: make(map[string]error),
		balance:  balance,
	}
}

// Name возвращает имя реализации
func (s *Simulated) Name() string {
	return "simulated"
}

// Connect всегда успешен
func (s *Simulated) Connect(ctx context.Context) error {
	return nil
}

// SetPrice задаёт цену исполнения для пары market/symbol.
// Без неё используется цена из запроса.
func (s *Simulated) SetPrice(market, symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[market+":"+symbol] = price
}

// SetFailure инъецирует ошибку для всех PlaceOrder на данном
// сегменте и стороне. nil снимает инъекцию.
func (s *Simulated) SetFailure(market, side string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, market+":"+side)
		return
	}
	s.failures[market+":"+side] = err
}

// PlaceOrder мгновенно исполняет ордер
func (s *Simulated) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[req.Market+":"+req.Side]; err != nil {
		return nil, err
	}

	price := req.Price
	if p, ok := s.prices[req.Market+":"+req.Symbol]; ok {
		price = p
	}

	s.seq++
	order := &Order{
		ID:           fmt.Sprintf("sim-%d", s.seq),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Market:       req.Market,
		Quantity:     req.Quantity,
		FilledQty:    req.Quantity,
		AvgFillPrice: price,
		Status:       OrderStatusFilled,
		CreatedAt:    time.Now(),
	}
	s.orders[req.Market+":"+order.ID] = order

	return cloneOrder(order), nil
}

// GetOrder возвращает ранее размещённый ордер
func (s *Simulated) GetOrder(ctx context.Context, market, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[market+":"+orderID]
	if !ok {
		return nil, &Error{Exchange: s.Name(), Kind: KindRejected, Message: "order not found: " + orderID}
	}
	return cloneOrder(order), nil
}

// CancelOrder отменяет ордер, если он ещё не исполнен
func (s *Simulated) CancelOrder(ctx context.Context, market, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[market+":"+orderID]
	if !ok {
		return &Error{Exchange: s.Name(), Kind: KindRejected, Message: "order not found: " + orderID}
	}
	if order.Status == OrderStatusFilled {
		return &Error{Exchange: s.Name(), Kind: KindRejected, Message: "order already filled"}
	}
	order.Status = OrderStatusCancelled
	return nil
}

// GetBalance возвращает симулированный баланс
func (s *Simulated) GetBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// Close освобождает ресурсы
func (s *Simulated) Close() error {
	return nil
}

func cloneOrder(o *Order) *Order {
	cp := *o
	return &cp
}
