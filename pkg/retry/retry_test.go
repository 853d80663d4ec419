package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayExponentialGrowth(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0, // без jitter рост строго детерминирован
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for attempt, w := range want {
		if got := cfg.Delay(attempt); got != w {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestDelayNegativeAttemptUsesInitialDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0,
	}

	// сброс счётчика попыток после здоровой сессии не должен
	// давать задержку короче начальной
	if got := cfg.Delay(-1); got != cfg.InitialDelay {
		t.Errorf("Delay(-1) = %v, want %v", got, cfg.InitialDelay)
	}
}

func TestDelayNeverExceedsMaxWithJitter(t *testing.T) {
	cfg := Config{
		InitialDelay: 1 * time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	// на больших attempt базовая задержка далеко за потолком,
	// jitter не должен выталкивать итог выше MaxDelay
	for i := 0; i < 200; i++ {
		for attempt := 0; attempt < 12; attempt++ {
			d := cfg.Delay(attempt)
			if d > cfg.MaxDelay {
				t.Fatalf("Delay(%d) = %v exceeds MaxDelay %v", attempt, d, cfg.MaxDelay)
			}
			if d < 0 {
				t.Fatalf("Delay(%d) = %v is negative", attempt, d)
			}
		}
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	wantErr := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return wantErr
	}, Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})

	if !errors.Is(err, wantErr) {
		t.Errorf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoRespectsRetryIf(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return Permanent(errors.New("rejected"))
	}, Config{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !IsPermanent(err) },
	})

	if err == nil {
		t.Fatal("Do() should return the permanent error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for permanent errors)", calls)
	}
}

func TestDoWithResultContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DoWithResult(ctx, func() (int, error) {
		return 0, errors.New("should not matter")
	}, DefaultConfig())

	if err == nil {
		t.Fatal("DoWithResult() with cancelled context should fail")
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("once")
		}
		return "ok", nil
	}, Config{MaxRetries: 3, InitialDelay: time.Millisecond})

	if err != nil {
		t.Fatalf("DoWithResult() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
}
