// Package ledger holds the process's belief about the net signed position of
// the tracked instrument.
//
// The ledger is authoritative only between reconciliations. It starts at zero,
// lives in memory and is never persisted. Exactly one goroutine (the engine
// worker) mutates it; Read is safe from any goroutine.
package ledger

import (
	"fmt"
	"sync"
)

// DefaultCap is the maximum absolute number of contracts held.
const DefaultCap = 6

// Ledger is a signed contract counter bounded by [-Cap, Cap].
type Ledger struct {
	mu      sync.Mutex
	net     int
	cap     int
	pending *Reservation
}

// New creates a ledger at zero with the given cap. A non-positive cap falls
// back to DefaultCap.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}

	return &Ledger{
		mu:      sync.Mutex{},
		net:     0,
		cap:     capacity,
		pending: nil,
	}
}

// Read returns the committed net contract count.
func (l *Ledger) Read() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.net
}

// Cap returns the position cap.
func (l *Ledger) Cap() int {
	return l.cap
}

// Apply adds delta to the counter immediately.
func (l *Ledger) Apply(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.apply(delta)
}

// Reserve opens a tentative change of delta. The committed value is unchanged
// until Commit is called. Opening a second reservation while one is pending
// is a programming error and panics.
func (l *Ledger) Reserve(delta int) *Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		panic(fmt.Sprintf("ledger: reservation of %+d opened while %+d is pending", delta, l.pending.delta))
	}

	r := &Reservation{ledger: l, delta: delta, done: false}
	l.pending = r

	return r
}

// Pending returns the delta of the open reservation, or 0 if there is none.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return 0
	}

	return l.pending.delta
}

func (l *Ledger) apply(delta int) {
	next := l.net + delta
	if next > l.cap || next < -l.cap {
		panic(fmt.Sprintf("ledger: applying %+d to %d leaves the [-%d, %d] range", delta, l.net, l.cap, l.cap))
	}

	l.net = next
}

// Reservation is a two-phase ledger change. Exactly one of Commit or Rollback
// takes effect; later calls are no-ops.
type Reservation struct {
	ledger *Ledger
	delta  int
	done   bool
}

// Delta returns the reserved change.
func (r *Reservation) Delta() int {
	return r.delta
}

// Commit applies the reserved delta and returns the new net value.
func (r *Reservation) Commit() int {
	l := r.ledger

	l.mu.Lock()
	defer l.mu.Unlock()

	if !r.done {
		r.done = true
		l.pending = nil
		l.apply(r.delta)
	}

	return l.net
}

// Rollback discards the reservation.
func (r *Reservation) Rollback() {
	l := r.ledger

	l.mu.Lock()
	defer l.mu.Unlock()

	if !r.done {
		r.done = true
		l.pending = nil
	}
}
