// Package feed управляет потоковыми соединениями с биржей:
// подключение, подписка на каналы, классификация входящих кадров
// и переподключение с экспоненциальным backoff.
package feed

import (
	"fmt"
	"sync"
	"time"
)

// Status - состояние потокового соединения
type Status int

const (
	StatusDisconnected Status = iota // нет соединения, переподключение не идёт
	StatusConnecting                 // идёт установка соединения
	StatusSubscribing                // соединение есть, подписки ещё не подтверждены
	StatusStreaming                  // подписки подтверждены, данные идут
	StatusReconnecting               // соединение потеряно, ждём очередную попытку
	StatusFailed                     // терминальное: попытки исчерпаны
)

// String возвращает строковое представление состояния
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusSubscribing:
		return "subscribing"
	case StatusStreaming:
		return "streaming"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// validStatusTransitions - допустимые переходы состояний соединения
var validStatusTransitions = map[Status][]Status{
	StatusDisconnected: {StatusConnecting},
	StatusConnecting:   {StatusSubscribing, StatusReconnecting, StatusFailed, StatusDisconnected},
	StatusSubscribing:  {StatusStreaming, StatusReconnecting, StatusFailed, StatusDisconnected},
	StatusStreaming:    {StatusReconnecting, StatusDisconnected},
	StatusReconnecting: {StatusConnecting, StatusFailed, StatusDisconnected},
	StatusFailed:       {},
}

// isValidTransition проверяет допустимость перехода
func isValidTransition(from, to Status) bool {
	for _, s := range validStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ConnectionState - наблюдаемое состояние соединения (снимок)
type ConnectionState struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	Subscribed  []string  `json:"subscribed"`
	LastMessage time.Time `json:"last_message,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// stateTracker хранит текущее состояние и переходит только по
// допустимым рёбрам. Недопустимый переход - ошибка программиста,
// она логируется вызывающей стороной и игнорируется.
type stateTracker struct {
	mu          sync.RWMutex
	status      Status
	attempt     int
	subscribed  []string
	lastMessage time.Time
	lastErr     error
}

func newStateTracker() *stateTracker {
	return &stateTracker{status: StatusDisconnected}
}

// transition переводит соединение в новое состояние.
// Возвращает false, если переход недопустим (состояние не меняется).
func (t *stateTracker) transition(to Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.status, to) {
		return false
	}
	t.status = to
	return true
}

func (t *stateTracker) current() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *stateTracker) setAttempt(n int) {
	t.mu.Lock()
	t.attempt = n
	t.mu.Unlock()
}

func (t *stateTracker) setSubscribed(symbols []string) {
	t.mu.Lock()
	t.subscribed = append([]string(nil), symbols...)
	t.mu.Unlock()
}

func (t *stateTracker) touch(now time.Time) {
	t.mu.Lock()
	t.lastMessage = now
	t.mu.Unlock()
}

func (t *stateTracker) setError(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

// snapshot возвращает копию наблюдаемого состояния
func (t *stateTracker) snapshot(name string) ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := ConnectionState{
		Name:        name,
		Status:      t.status.String(),
		Attempt:     t.attempt,
		Subscribed:  append([]string(nil), t.subscribed...),
		LastMessage: t.lastMessage,
	}
	if t.lastErr != nil {
		st.LastError = t.lastErr.Error()
	}
	return st
}
