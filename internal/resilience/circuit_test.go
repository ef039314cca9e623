package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

var errDown = Transient(errors.New("store down"))

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error { return errDown })
	}
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("investments", DefaultBreakerConfig())
	calls := 0
	if err := b.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || b.State() != StateClosed {
		t.Errorf("expected 1 call in closed state, got %d calls, %s", calls, b.State())
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := NewBreaker("investments", BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(b, 3)

	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	err := b.Execute(context.Background(), func(_ context.Context) error {
		t.Error("must not run while open")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker("clients", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error { return errors.New("bad request") })
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("clients", BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(b, 2)
	if b.Failures() != 2 {
		t.Fatalf("expected 2 failures, got %d", b.Failures())
	}
	_ = b.Execute(context.Background(), func(_ context.Context) error { return nil })
	if b.Failures() != 0 {
		t.Errorf("expected 0 failures, got %d", b.Failures())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("investments", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	b.nowFunc = func() time.Time { return now }

	failN(b, 1)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	if err := b.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("investments", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	b.nowFunc = func() time.Time { return now }

	failN(b, 1)
	now = now.Add(11 * time.Second)
	failN(b, 1)

	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	b := NewBreaker("x", BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	failN(b, 1)
	b.Reset()

	if len(transitions) != 2 || transitions[0] != "closed->open" || transitions[1] != "open->closed" {
		t.Errorf("unexpected transitions %v", transitions)
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1000, ResetTimeout: time.Minute})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(_ context.Context) error {
				if i%2 == 0 {
					return errDown
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestExecuteVal(t *testing.T) {
	b := NewBreaker("x", DefaultBreakerConfig())
	v, err := ExecuteVal(context.Background(), b, func(_ context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("expected 7, got %d (%v)", v, err)
	}

	open := NewBreaker("y", BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	failN(open, 1)
	v, err = ExecuteVal(context.Background(), open, func(_ context.Context) (int, error) { return 9, nil })
	if !errors.Is(err, ErrBreakerOpen) || v != 0 {
		t.Errorf("expected rejection, got %d (%v)", v, err)
	}
}

func TestBreakers_Registry(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	a := r.Get("investments")
	if r.Get("investments") != a {
		t.Error("expected same breaker for same name")
	}
	failN(r.Get("clients"), 1)

	states := r.States()
	if states["investments"] != StateClosed || states["clients"] != StateOpen {
		t.Errorf("unexpected states %v", states)
	}
}

func TestBreakerFromConfig(t *testing.T) {
	cfg := BreakerFromConfig(7, 12)
	if cfg.FailureThreshold != 7 || cfg.ResetTimeout != 12*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestState_String(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

func TestState_JSON(t *testing.T) {
	raw, err := json.Marshal(map[string]State{"clients": StateOpen})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"clients":"open"}` {
		t.Errorf("got %s", raw)
	}
}
