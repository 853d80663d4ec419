package models

import "time"

// Position представляет двухногую арбитражную позицию
// (лонг на споте + шорт на фьючерсе одного актива)
type Position struct {
	ID                string     `json:"id" db:"id"`
	Symbol            string     `json:"symbol" db:"symbol"`                           // BTC/INR
	SpotQuantity      float64    `json:"spot_quantity" db:"spot_quantity"`             // куплено на споте
	FuturesQuantity   float64    `json:"futures_quantity" db:"futures_quantity"`       // продано на фьючерсе
	SpotEntryPrice    float64    `json:"spot_entry_price" db:"spot_entry_price"`       // средняя цена входа (спот)
	FuturesEntryPrice float64    `json:"futures_entry_price" db:"futures_entry_price"` // средняя цена входа (фьючерс)
	FundingRate       float64    `json:"funding_rate" db:"funding_rate"`               // ставка на момент входа, %
	State             string     `json:"state" db:"state"`
	CloseReason       string     `json:"close_reason,omitempty" db:"close_reason"`
	Compensation      string     `json:"compensation,omitempty" db:"compensation"` // исход компенсации при частичном исполнении
	OpenedAt          time.Time  `json:"opened_at" db:"opened_at"`
	ScheduledCloseAt  time.Time  `json:"scheduled_close_at" db:"scheduled_close_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// Состояния позиции
const (
	PositionStatePending    = "pending"    // ноги отправлены, ждём подтверждения
	PositionStateOpen       = "open"       // обе ноги исполнены
	PositionStateMonitoring = "monitoring" // позиция под периодической проверкой условий закрытия
	PositionStateClosing    = "closing"    // отправлены закрывающие ордера
	PositionStateClosed     = "closed"     // терминальное: закрыта и подтверждена
	PositionStateFailed     = "failed"     // терминальное: частичное исполнение, остаточный риск записан
)

// Причины закрытия
const (
	CloseReasonHoldingElapsed = "holding_elapsed"      // истёк срок удержания
	CloseReasonFundingFlipped = "funding_non_positive" // ставка финансирования стала <= 0
	CloseReasonManual         = "manual"
)

// Исходы компенсирующего действия при частичном исполнении ног.
// Даже неудачная компенсация фиксируется: это остаточный риск,
// требующий ручного вмешательства.
const (
	CompensationNone    = ""
	CompensationDone    = "compensated"
	CompensationFailed  = "compensation_failed"
	CompensationUnknown = "compensation_unknown"
)

// IsTerminal возвращает true для терминальных состояний
func (p *Position) IsTerminal() bool {
	return p.State == PositionStateClosed || p.State == PositionStateFailed
}
