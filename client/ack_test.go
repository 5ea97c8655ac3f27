package client

import (
	"errors"
	"testing"
	"time"
)

func TestAckTableResolveDeliversArgs(t *testing.T) {
	at := newAckTable()
	got := make(chan []any, 1)
	id := at.register(func(args []any, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- args
	}, 0)

	at.resolve(id, []any{"a", 1})

	select {
	case args := <-got:
		if len(args) != 2 {
			t.Fatalf("got %v", args)
		}
	case <-time.After(time.Second):
		t.Fatal("ack never resolved")
	}
}

func TestAckTableTimeoutFailsCallback(t *testing.T) {
	at := newAckTable()
	failed := make(chan error, 1)
	at.register(func(args []any, err error) { failed <- err }, 10*time.Millisecond)

	select {
	case err := <-failed:
		if err == nil {
			t.Fatal("expected timeout error")
		}
	case <-time.After(time.Second):
		t.Fatal("ack never timed out")
	}
}

func TestAckTableLateResolveAfterTimeoutIsNoop(t *testing.T) {
	at := newAckTable()
	calls := make(chan error, 2)
	id := at.register(func(args []any, err error) { calls <- err }, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	at.resolve(id, []any{"too late"})

	select {
	case err := <-calls:
		if err == nil {
			t.Fatal("expected the timeout failure, not a late resolve")
		}
	case <-time.After(time.Second):
		t.Fatal("expected the timeout to have fired")
	}

	select {
	case <-calls:
		t.Fatal("resolve after timeout must not invoke the callback again")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAckTableCancelAllFailsEveryPending(t *testing.T) {
	at := newAckTable()
	n := 3
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		at.register(func(args []any, err error) { done <- err }, 0)
	}

	cause := errors.New("boom")
	at.cancelAll(cause)

	for i := 0; i < n; i++ {
		select {
		case err := <-done:
			if !errors.Is(err, cause) {
				t.Fatalf("got err %v, want %v", err, cause)
			}
		case <-time.After(time.Second):
			t.Fatal("not all acks were cancelled")
		}
	}
}
