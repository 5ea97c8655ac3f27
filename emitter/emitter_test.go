package emitter_test

import (
	"sync"
	"testing"

	"github.com/packetloop/sioclient/emitter"
)

func TestEmitDispatchesSnapshot(t *testing.T) {
	e := emitter.New()
	var calls []int

	var second emitter.Listener
	first := func(args ...any) {
		calls = append(calls, 1)
		e.On("x", second) // registered mid-dispatch, must not fire this pass
	}
	second = func(args ...any) { calls = append(calls, 2) }

	e.On("x", first)
	e.Emit("x")
	if len(calls) != 1 || calls[0] != 1 {
		t.Fatalf("expected only the pre-snapshot listener to fire, got %v", calls)
	}

	e.Emit("x")
	if len(calls) != 3 {
		t.Fatalf("expected second listener registered after first pass, got %v", calls)
	}
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	e := emitter.New()
	n := 0
	e.Once("y", func(args ...any) { n++ })
	e.Emit("y")
	e.Emit("y")
	if n != 1 {
		t.Fatalf("expected once listener to fire exactly once, got %d", n)
	}
	if e.HasListeners("y") {
		t.Fatalf("expected once listener to be removed after firing")
	}
}

func TestOffByIdentity(t *testing.T) {
	e := emitter.New()
	fn := func(args ...any) {}
	e.On("z", fn)
	if !e.HasListeners("z") {
		t.Fatalf("expected listener registered")
	}
	e.Off("z", emitter.Listener(fn))
	if e.HasListeners("z") {
		t.Fatalf("expected listener removed")
	}
}

func TestConcurrentRegistrationIsSafe(t *testing.T) {
	e := emitter.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.On("concurrent", func(args ...any) {})
			e.Emit("concurrent")
		}()
	}
	wg.Wait()
}
