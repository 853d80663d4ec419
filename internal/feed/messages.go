package feed

import (
	stdjson "encoding/json"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind - класс входящего кадра
type Kind int

const (
	KindUnrecognized Kind = iota // неизвестный кадр: считается и отбрасывается
	KindAck                      // подтверждение подписки
	KindQuote                    // обновление котировки (лучшие bid/ask)
	KindFunding                  // обновление ставки финансирования
	KindAccount                  // событие аккаунта (баланс, ордер)
)

// String возвращает строковое представление класса
func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindQuote:
		return "quote"
	case KindFunding:
		return "funding"
	case KindAccount:
		return "account"
	default:
		return "unrecognized"
	}
}

// Message - классифицированный входящий кадр
type Message struct {
	Kind       Kind
	Symbol     string // канонический BASE/QUOTE, пусто для account-событий
	Bid        float64
	Ask        float64
	Rate       float64 // ставка финансирования, %
	NextAt     time.Time
	ReceivedAt time.Time

	// Поля account-событий
	OrderID     string
	OrderStatus string  // статус биржи в нижнем регистре
	Balance     float64 // доступный баланс
	HasBalance  bool
}

// envelope - сырой кадр биржи. Поля объединены по всем типам
// событий: конкретный набор определяется полем Event.
type envelope struct {
	Event   string `json:"event"`
	Pair    string `json:"pair"`
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Bid      stdjson.Number `json:"bid"`
		Ask      stdjson.Number `json:"ask"`
		Rate     stdjson.Number `json:"funding_rate"`
		NextTime int64          `json:"next_funding_time"`
		OrderID  string         `json:"order_id"`
		Status   string         `json:"status"`
		MainBal  stdjson.Number `json:"main_balance"`
	} `json:"data"`
}

// Имена событий потокового API
const (
	eventOrderBook   = "FETCH_ORDER_BOOK_CS_PRO"
	eventTicker      = "FETCH_TICKER_INFO_CS_PRO"
	eventFundingRate = "FETCH_FUNDING_RATE_CS_PRO"
	eventBalance     = "FETCH_BALANCE_CS_PRO"
	eventOrderUpdate = "FETCH_ORDER_UPDATE_CS_PRO"
	eventSubscribe   = "subscribe"
)

// Classify разбирает сырой кадр и относит его к одному из классов.
// Ошибка разбора или неизвестное событие дают KindUnrecognized:
// такие кадры учитываются метрикой и не прерывают поток.
func Classify(raw []byte, now time.Time) Message {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{Kind: KindUnrecognized, ReceivedAt: now}
	}

	msg := Message{
		Kind:       KindUnrecognized,
		Symbol:     NormalizeSymbol(env.Pair),
		ReceivedAt: now,
	}

	switch env.Event {
	case eventSubscribe:
		msg.Kind = KindAck
	case eventOrderBook, eventTicker:
		bid, errB := env.Data.Bid.Float64()
		ask, errA := env.Data.Ask.Float64()
		if errB != nil || errA != nil || bid <= 0 || ask <= 0 {
			return msg // котировка без валидных цен бесполезна
		}
		msg.Kind = KindQuote
		msg.Bid = bid
		msg.Ask = ask
	case eventFundingRate:
		rate, err := env.Data.Rate.Float64()
		if err != nil {
			return msg
		}
		msg.Kind = KindFunding
		msg.Rate = rate
		if env.Data.NextTime > 0 {
			msg.NextAt = time.UnixMilli(env.Data.NextTime)
		}
	case eventOrderUpdate:
		msg.Kind = KindAccount
		msg.OrderID = env.Data.OrderID
		msg.OrderStatus = strings.ToLower(env.Data.Status)
	case eventBalance:
		msg.Kind = KindAccount
		if bal, err := env.Data.MainBal.Float64(); err == nil {
			msg.Balance = bal
			msg.HasBalance = true
		}
	}

	return msg
}
