package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	l := New(10, 2)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.last = now

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Fatal("Allow() = true with empty bucket")
	}

	// 100ms при 10 токенах/сек - ровно один токен
	now = now.Add(100 * time.Millisecond)
	if !l.Allow() {
		t.Error("Allow() = false after refill interval")
	}
	if l.Allow() {
		t.Error("Allow() = true, refill should have added a single token")
	}
}

func TestLimiterRefillCapsAtBurst(t *testing.T) {
	l := New(10, 2)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.last = now

	now = now.Add(time.Hour)
	if got := l.Tokens(); got != 2 {
		t.Errorf("Tokens() = %f, want burst cap 2", got)
	}
}

func TestLimiterWaitImmediate(t *testing.T) {
	l := New(10, 2)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v with tokens available", err)
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := New(10, 2)
	now := time.Now()
	l.now = func() time.Time { return now } // замороженное время: пополнения нет
	l.last = now

	l.Allow()
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
