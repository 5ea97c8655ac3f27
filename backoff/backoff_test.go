package backoff_test

import (
	"testing"

	"github.com/packetloop/sioclient/backoff"
)

func TestDurationWithoutJitterIsExponential(t *testing.T) {
	b := backoff.New(100, 10_000, 2)
	if got := b.Duration(); got != 100 {
		t.Fatalf("first duration = %d, want 100", got)
	}
	if got := b.Duration(); got != 200 {
		t.Fatalf("second duration = %d, want 200", got)
	}
	if got := b.Duration(); got != 400 {
		t.Fatalf("third duration = %d, want 400", got)
	}
}

func TestDurationClampsAtMax(t *testing.T) {
	b := backoff.New(100, 400, 2)
	_ = b.Duration() // 100
	_ = b.Duration() // 200
	third := b.Duration()
	if third != 400 {
		t.Fatalf("third duration = %d, want clamped 400", third)
	}
	fourth := b.Duration()
	if fourth != 400 {
		t.Fatalf("fourth duration = %d, want still clamped 400", fourth)
	}
}

func TestResetResumesFromMin(t *testing.T) {
	b := backoff.New(100, 10_000, 2)
	b.Duration()
	b.Duration()
	b.Reset()
	if got := b.Duration(); got != 100 {
		t.Fatalf("post-reset duration = %d, want 100", got)
	}
}

func TestDurationAlwaysWithinBounds(t *testing.T) {
	b := backoff.New(50, 1000, 2)
	if err := b.SetJitter(0.5); err != nil {
		t.Fatalf("SetJitter: %v", err)
	}
	for i := 0; i < 100; i++ {
		d := b.Duration()
		if d < 50 || d > 1000 {
			t.Fatalf("duration %d out of [50, 1000]", d)
		}
	}
}

func TestSetJitterRejectsOutOfRange(t *testing.T) {
	b := backoff.New(100, 1000, 2)
	if err := b.SetJitter(1.0); err == nil {
		t.Fatalf("expected error for jitter == 1")
	}
	if err := b.SetJitter(-0.1); err == nil {
		t.Fatalf("expected error for negative jitter")
	}
}

func TestSetMaxBelowMinCoercesUp(t *testing.T) {
	b := backoff.New(500, 10_000, 2)
	b.SetMax(100)
	if b.GetMax() != 500 {
		t.Fatalf("GetMax() = %v, want coerced to min (500)", b.GetMax())
	}
}
