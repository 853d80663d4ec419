package bot

import (
	"sync"

	"fundingbot/internal/feed"
)

// accountOrderLimit ограничивает память под статусы ордеров из потока
const accountOrderLimit = 1000

// AccountState хранит последние события пользовательского потока:
// доступный баланс и статусы ордеров. Источником истины по исполнению
// остаётся REST-опрос координатора; поток даёт оперативную картину
// для отчётности.
type AccountState struct {
	mu      sync.RWMutex
	balance float64
	hasBal  bool
	orders  map[string]string // orderID -> последний статус с биржи
}

// NewAccountState создаёт пустое состояние аккаунта
func NewAccountState() *AccountState {
	return &AccountState{orders: make(map[string]string)}
}

// Handler возвращает обработчик кадров пользовательского фида
func (a *AccountState) Handler() func(feed.Message) {
	return func(msg feed.Message) {
		if msg.Kind != feed.KindAccount {
			return
		}

		a.mu.Lock()
		defer a.mu.Unlock()

		if msg.HasBalance {
			a.balance = msg.Balance
			a.hasBal = true
			AccountBalance.Set(msg.Balance)
		}

		if msg.OrderID != "" {
			if len(a.orders) >= accountOrderLimit {
				// полная история ордеров живёт в БД, память не копим
				a.orders = make(map[string]string)
			}
			a.orders[msg.OrderID] = msg.OrderStatus
		}
	}
}

// Balance возвращает последний известный баланс.
// Второе значение false, пока поток не принёс ни одного обновления.
func (a *AccountState) Balance() (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance, a.hasBal
}

// OrderStatus возвращает последний потоковый статус ордера
func (a *AccountState) OrderStatus(id string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	status, ok := a.orders[id]
	return status, ok
}
