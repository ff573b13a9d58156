package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow("openai") {
		t.Error("expected first request allowed")
	}
	if !l.Allow("openai") {
		t.Error("expected second request within burst allowed")
	}
	if l.Allow("openai") {
		t.Error("expected third request denied")
	}

	// Keys are independent budgets
	if !l.Allow("anthropic") {
		t.Error("expected fresh key to have its own budget")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow("openai") // exhaust the burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "openai"); err == nil {
		t.Error("expected context deadline to interrupt Wait")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(1, 1)
	l.SetRate("ollama", 100, 10)

	for i := 0; i < 10; i++ {
		if !l.Allow("ollama") {
			t.Fatalf("expected request %d within custom burst", i)
		}
	}
}

func TestLimiter_DefaultBurst(t *testing.T) {
	l := NewLimiter(1, 0)
	if l.defaultBurst != 5 {
		t.Errorf("expected default burst 5, got %d", l.defaultBurst)
	}
}
