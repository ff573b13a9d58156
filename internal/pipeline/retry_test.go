package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

func TestRetryer_PassesAttemptNumber(t *testing.T) {
	r := newRetryer(model.RetryConfig{ExtraAttempts: 2}, zap.NewNop())

	var attempts []int
	err := r.do(context.Background(), "test", func(ctx context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return &parse.ParseError{Preview: "nope", Attempts: 5}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(attempts) != 3 || attempts[0] != 0 || attempts[2] != 2 {
		t.Errorf("expected attempts 0,1,2, got %v", attempts)
	}
}

func TestRetryer_SchemaViolationNotRetried(t *testing.T) {
	r := newRetryer(model.RetryConfig{ExtraAttempts: 5}, zap.NewNop())

	calls := 0
	err := r.do(context.Background(), "test", func(ctx context.Context, attempt int) error {
		calls++
		return &model.SchemaViolationError{Field: "amount", Reason: "missing"}
	})

	var sv *model.SchemaViolationError
	if !errors.As(err, &sv) {
		t.Fatalf("expected SchemaViolationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}

func TestRetryer_UnknownErrorBecomesCollaborator(t *testing.T) {
	r := newRetryer(model.RetryConfig{ExtraAttempts: 1}, zap.NewNop())

	cause := errors.New("dial tcp: connection refused")
	err := r.do(context.Background(), "fraud-scorer", func(ctx context.Context, attempt int) error {
		return cause
	})

	var ce *CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if ce.Collaborator != "fraud-scorer" {
		t.Errorf("expected collaborator name, got %q", ce.Collaborator)
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to unwrap")
	}
}

func TestRetryer_CanceledContextStopsBackoff(t *testing.T) {
	r := newRetryer(model.RetryConfig{ExtraAttempts: 3, BackoffMillis: 30_000}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := r.do(ctx, "test", func(ctx context.Context, attempt int) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("backoff should not block on a canceled context")
	}
}

func TestClassify_KnownErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"parse error", &parse.ParseError{Preview: "x", Attempts: 5}},
		{"schema violation", &model.SchemaViolationError{Field: "f", Reason: "r"}},
		{"invalid transition", &model.InvalidStateTransitionError{ClaimID: "c", From: model.StatusDraft, Op: "Triage"}},
		{"collaborator", &CollaboratorError{Collaborator: "x", Err: errors.New("y")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify("agent", tt.err); got != tt.err {
				t.Errorf("expected passthrough, got %v", got)
			}
		})
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("claim-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key should not block")
	}
	unlockA()
}
