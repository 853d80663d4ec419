package models

import "time"

// OrderRecord представляет запись об отправленном ордере (нога позиции,
// закрывающий ордер или компенсация). Каждый ордер фиксируется независимо
// от исхода: незаписанная нога = незаписанный риск.
type OrderRecord struct {
	ID           int        `json:"id" db:"id"`
	PositionID   string     `json:"position_id" db:"position_id"`
	Market       string     `json:"market" db:"market"`   // spot, futures
	Side         string     `json:"side" db:"side"`       // buy, sell
	Purpose      string     `json:"purpose" db:"purpose"` // entry, exit, compensation
	Quantity     float64    `json:"quantity" db:"quantity"`
	PriceAvg     float64    `json:"price_avg" db:"price_avg"` // средняя цена исполнения
	Status       string     `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	FilledAt     *time.Time `json:"filled_at,omitempty" db:"filled_at"`
}

// Назначение ордера
const (
	OrderPurposeEntry        = "entry"
	OrderPurposeExit         = "exit"
	OrderPurposeCompensation = "compensation"
)

// Статусы ордера
const (
	OrderStatusFilled    = "filled"
	OrderStatusRejected  = "rejected"
	OrderStatusPending   = "pending"
	OrderStatusCancelled = "cancelled"
	// OrderStatusUnknown - исход не установлен (таймаут или shutdown во время
	// размещения). Никогда не отбрасывается молча.
	OrderStatusUnknown = "unknown"
)
