package services

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// RoundLocker serializes "mutate stop set/order, then recompute stats" per
// round. Recomputes for different rounds run concurrently; two concurrent
// passes over the same round would interleave gateway calls and order-index
// writes and corrupt totals.
type RoundLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewRoundLocker() *RoundLocker {
	return &RoundLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *RoundLocker) lockFor(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock acquires the round's lock and returns its release function.
func (l *RoundLocker) Lock(id uuid.UUID) func() {
	m := l.lockFor(id)
	m.Lock()
	return m.Unlock
}

// LockAll acquires the locks for every given round in a fixed order
// (ascending round ID) so cross-round operations cannot deadlock.
func (l *RoundLocker) LockAll(ids []uuid.UUID) func() {
	uniq := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].String() < uniq[j].String() })

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		m := l.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
