package client

import (
	"errors"
	"sync"
	"time"
)

// AckFunc receives the server's acknowledgement arguments, or a non-nil err
// if the ack never arrived before its timeout (when one was set) or the
// socket disconnected first.
type AckFunc func(args []any, err error)

// ackTable tracks pending acks by id, guarding against both a late response
// after a timeout fired and a timeout firing after the response arrived.
type ackTable struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*ackEntry

	// onExpire, if set, is called (outside the table's lock) after a pending
	// ack times out, so the owning Socket can splice the matching packet out
	// of its send buffer instead of sending it after the caller already saw
	// it fail.
	onExpire func(id uint64)
}

type ackEntry struct {
	fn    AckFunc
	timer *time.Timer
}

func newAckTable() *ackTable {
	return &ackTable{pending: make(map[uint64]*ackEntry)}
}

// register assigns a fresh ack id to fn and returns it. If timeout is
// positive, the ack fails with an error if it hasn't resolved by then.
func (a *ackTable) register(fn AckFunc, timeout time.Duration) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++

	entry := &ackEntry{fn: fn}
	if timeout > 0 {
		entry.timer = time.AfterFunc(timeout, func() { a.fail(id, errors.New("client: ack timeout")) })
	}
	a.pending[id] = entry
	return id
}

// resolve delivers args to the ack id's callback, if still pending.
func (a *ackTable) resolve(id uint64, args []any) {
	a.mu.Lock()
	entry, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.fn(args, nil)
}

func (a *ackTable) fail(id uint64, cause error) {
	a.mu.Lock()
	entry, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	onExpire := a.onExpire
	a.mu.Unlock()

	if !ok {
		return
	}
	entry.fn(nil, cause)
	if onExpire != nil {
		onExpire(id)
	}
}

// cancelAll fails every pending ack, e.g. on disconnect.
func (a *ackTable) cancelAll(cause error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[uint64]*ackEntry)
	a.mu.Unlock()

	for _, entry := range pending {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		entry.fn(nil, cause)
	}
}
