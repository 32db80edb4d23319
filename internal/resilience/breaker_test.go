package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("recognize", Config{Threshold: 3, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})
	for i := 0; i < 2; i++ {
		b.Failure()
		if b.State() != Closed {
			t.Fatalf("opened after %d failures", i+1)
		}
	}
	b.Failure()
	if b.State() != Open {
		t.Fatalf("State = %v, want open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker("detect", Config{Threshold: 2, ResetTimeout: time.Hour})
	b.Failure()
	b.Success()
	b.Failure()
	if b.State() != Closed {
		t.Errorf("State = %v, want closed", b.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []State
	b := NewBreaker("translate", Config{Threshold: 1, ResetTimeout: time.Millisecond, HalfOpenSuccesses: 2}).
		OnChange(func(_, to State) { transitions = append(transitions, to) })

	b.Failure()
	time.Sleep(5 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow after reset timeout = %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("State = %v, want half-open", b.State())
	}
	b.Success()
	b.Success()
	if b.State() != Closed {
		t.Fatalf("State = %v, want closed", b.State())
	}

	want := []State{Open, HalfOpen, Closed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("x", Config{Threshold: 1, ResetTimeout: time.Millisecond})
	b.Failure()
	time.Sleep(5 * time.Millisecond)
	_ = b.Allow()
	b.Failure()
	if b.State() != Open {
		t.Errorf("State = %v, want open", b.State())
	}
}

func TestExecute(t *testing.T) {
	b := NewBreaker("x", Config{Threshold: 1, ResetTimeout: time.Hour})
	v, err := Execute(b, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Execute = %d, %v", v, err)
	}
	_, err = Execute(b, func() (int, error) { return 0, errors.New("fail") })
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := Execute(b, func() (int, error) { return 1, nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Execute on open breaker = %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Closed.String() != "closed" || Open.String() != "open" || HalfOpen.String() != "half-open" {
		t.Error("unexpected state names")
	}
}
