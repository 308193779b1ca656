package ledger

import (
	"sort"
	"sync"
)

// lockTable hands out one mutex per account so operations touching the same
// account serialize while operations on disjoint accounts run concurrently.
// Locks are acquired in sorted ID order, so both legs of a transfer can be
// held together without deadlocking against a concurrent transfer in the
// opposite direction.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[string]*sync.Mutex),
	}
}

// forAccount returns the mutex guarding one account, creating it on first use.
func (lt *lockTable) forAccount(id string) *sync.Mutex {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	l, ok := lt.locks[id]
	if !ok {
		l = &sync.Mutex{}
		lt.locks[id] = l
	}
	return l
}

// lockAccounts acquires the locks for the given account IDs in sorted order
// and returns a function releasing them in reverse order. Duplicate and empty
// IDs are ignored.
func (lt *lockTable) lockAccounts(ids ...string) func() {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		l := lt.forAccount(id)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// inflightSet tracks transactions with an Apply/Remove currently running.
// A duplicate operation against the same transaction is rejected, not queued.
type inflightSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newInflightSet() *inflightSet {
	return &inflightSet{
		ids: make(map[string]bool),
	}
}

// begin marks the transaction as having an operation in flight. It reports
// false if one is already running.
func (s *inflightSet) begin(txID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[txID] {
		return false
	}
	s.ids[txID] = true
	return true
}

// end clears the in-flight mark.
func (s *inflightSet) end(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, txID)
}
