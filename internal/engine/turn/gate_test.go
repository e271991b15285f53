package turn

import (
	"context"
	"testing"
	"time"
)

func TestGate(t *testing.T) {
	t.Run("resolve then await", func(t *testing.T) {
		g := newGate()
		if !g.Resolve(DecisionContinue) {
			t.Fatal("first resolve rejected")
		}
		d, err := g.Await(context.Background())
		if err != nil {
			t.Fatalf("Await failed: %v", err)
		}
		if d != DecisionContinue {
			t.Errorf("expected continue, got %q", d)
		}
	})

	t.Run("second resolve is rejected while one is pending", func(t *testing.T) {
		g := newGate()
		if !g.Resolve(DecisionStop) {
			t.Fatal("first resolve rejected")
		}
		if g.Resolve(DecisionUnlimited) {
			t.Error("second resolve accepted with a decision pending")
		}
	})

	t.Run("await during cancellation returns stop", func(t *testing.T) {
		g := newGate()
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		d, err := g.Await(ctx)
		if err == nil {
			t.Error("expected a cancellation error")
		}
		if d != DecisionStop {
			t.Errorf("expected stop on cancellation, got %q", d)
		}
	})

	t.Run("resolve after await delivers", func(t *testing.T) {
		g := newGate()
		got := make(chan Decision, 1)

		go func() {
			d, _ := g.Await(context.Background())
			got <- d
		}()

		time.Sleep(10 * time.Millisecond)
		if !g.Resolve(DecisionUnlimited) {
			t.Fatal("resolve rejected")
		}

		select {
		case d := <-got:
			if d != DecisionUnlimited {
				t.Errorf("expected unlimited, got %q", d)
			}
		case <-time.After(time.Second):
			t.Fatal("Await never returned")
		}
	})
}

func TestParseDecision(t *testing.T) {
	cases := []struct {
		in   string
		want Decision
		ok   bool
	}{
		{"stop", DecisionStop, true},
		{"continue", DecisionContinue, true},
		{"unlimited", DecisionUnlimited, true},
		{"", "", false},
		{"maybe", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseDecision(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseDecision(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBudget(t *testing.T) {
	t.Run("exhausts at the limit", func(t *testing.T) {
		b := newBudget()
		for i := 0; i < DefaultToolCallLimit-1; i++ {
			b.calls++
			if b.exhausted() {
				t.Fatalf("exhausted early at %d calls", b.calls)
			}
		}
		b.calls++
		if !b.exhausted() {
			t.Error("not exhausted at the limit")
		}
	})

	t.Run("continue extends the limit", func(t *testing.T) {
		b := newBudget()
		b.calls = DefaultToolCallLimit
		b.apply(DecisionContinue)
		if b.exhausted() {
			t.Error("still exhausted after continue")
		}
		if b.limit != DefaultToolCallLimit+ThrottleStep {
			t.Errorf("limit = %d, want %d", b.limit, DefaultToolCallLimit+ThrottleStep)
		}
	})

	t.Run("unlimited never exhausts", func(t *testing.T) {
		b := newBudget()
		b.apply(DecisionUnlimited)
		b.calls = 1000
		if b.exhausted() {
			t.Error("unlimited budget exhausted")
		}
	})

	t.Run("rearm restores the initial state", func(t *testing.T) {
		b := newBudget()
		b.calls = 25
		b.limit = 30
		b.unlimited = true
		b.rearm()
		if b.calls != 0 || b.limit != DefaultToolCallLimit || b.unlimited {
			t.Errorf("rearm left %+v", b)
		}
	})
}
