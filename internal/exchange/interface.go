// Package exchange предоставляет унифицированный интерфейс для торговых
// операций. Два варианта реализации: live (CoinSwitch REST API) и
// simulated (детерминированные исполнения без сети). Верхние слои зависят
// только от интерфейса — режим выбирается один раз на старте.
package exchange

import (
	"context"
	"time"
)

// Exchange определяет торговые операции, нужные координатору ордеров
type Exchange interface {
	// Name возвращает имя реализации ("coinswitch", "simulated")
	Name() string

	// Connect проверяет учётные данные (запрос баланса).
	// Ошибка аутентификации фатальна и не ретраится.
	Connect(ctx context.Context) error

	// PlaceOrder размещает ордер на споте или фьючерсе
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// GetOrder возвращает текущее состояние ордера.
	// Используется для дорешивания ордеров в статусе pending.
	GetOrder(ctx context.Context, market, orderID string) (*Order, error)

	// CancelOrder отменяет неисполненный ордер
	CancelOrder(ctx context.Context, market, orderID string) error

	// GetBalance возвращает доступный баланс котируемой валюты
	GetBalance(ctx context.Context) (float64, error)

	// Close закрывает соединения
	Close() error
}

// OrderRequest - параметры размещаемого ордера
type OrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`   // "buy" или "sell"
	Market   string  `json:"market"` // "spot" или "futures"
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"` // 0 = рыночный ордер
}

// Order представляет ордер в том виде, как его видит биржа
type Order struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Market       string    `json:"market"`
	Quantity     float64   `json:"quantity"`
	FilledQty    float64   `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	Status       string    `json:"status"` // "filled", "pending", "rejected", "cancelled"
	CreatedAt    time.Time `json:"created_at"`
}

// Side constants
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Market constants
const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
)

// Order status constants
const (
	OrderStatusFilled    = "filled"
	OrderStatusPending   = "pending"
	OrderStatusRejected  = "rejected"
	OrderStatusCancelled = "cancelled"
)

// Классы ошибок биржи. Политика обработки (см. координатор):
// transient - ретрай с backoff; auth - фатально, без ретраев;
// rejected - ордер отклонён, ретрай бессмыслен; malformed - ответ
// не разобран, считается transient для повторного опроса.
const (
	KindTransient = "transient"
	KindAuth      = "auth"
	KindRejected  = "rejected"
	KindMalformed = "malformed"
)

// Error представляет классифицированную ошибку от биржи
type Error struct {
	Exchange string
	Kind     string
	Code     string
	Message  string
	Original error
}

func (e *Error) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *Error) Unwrap() error {
	return e.Original
}

// IsAuthError проверяет, является ли ошибка ошибкой аутентификации
func IsAuthError(err error) bool {
	return errKindIs(err, KindAuth)
}

// IsTransient проверяет, имеет ли смысл повторять операцию
func IsTransient(err error) bool {
	return errKindIs(err, KindTransient) || errKindIs(err, KindMalformed)
}

// IsRejected проверяет, был ли ордер отклонён биржей
func IsRejected(err error) bool {
	return errKindIs(err, KindRejected)
}

func errKindIs(err error, kind string) bool {
	for err != nil {
		if ee, ok := err.(*Error); ok {
			return ee.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
