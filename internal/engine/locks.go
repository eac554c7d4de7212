package engine

import "sync"

// lockTable hands out one mutex per booking ID so mutations to the same
// booking are serialized while unrelated bookings stay fully parallel.
// Entries are reference-counted and removed once the last holder releases,
// keeping the table bounded by the number of in-flight bookings.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint64]*bookingLock
}

type bookingLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint64]*bookingLock)}
}

// Acquire blocks until the caller holds the exclusive lock for bookingID
// and returns the release function.
func (t *lockTable) Acquire(bookingID uint64) func() {
	t.mu.Lock()
	l, ok := t.locks[bookingID]
	if !ok {
		l = &bookingLock{}
		t.locks[bookingID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, bookingID)
		}
		t.mu.Unlock()
	}
}
