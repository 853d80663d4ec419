// Package ratelimit реализует token-bucket ограничитель частоты
// запросов к REST API биржи.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter - token bucket: ведро наполняется с постоянной скоростью
// rate токенов/сек до ёмкости burst, каждый запрос потребляет токен.
// Burst допускает короткие всплески - например, параллельное
// размещение двух ног позиции.
type Limiter struct {
	rate   float64 // токенов в секунду
	burst  float64 // ёмкость ведра
	tokens float64
	last   time.Time
	now    func() time.Time
	mu     sync.Mutex
}

// New создаёт ограничитель с полным ведром
func New(rate, burst float64) *Limiter {
	if rate <= 0 {
		rate = 10
	}
	if burst < rate {
		burst = rate
	}

	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: burst,
		last:   time.Now(),
		now:    time.Now,
	}
}

// refill пополняет токены за прошедшее время. Вызывается под mu.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}

// Wait блокирует до получения токена или отмены контекста
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()

		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow забирает токен без блокировки. false - ведро пусто.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество токенов (для мониторинга)
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}
