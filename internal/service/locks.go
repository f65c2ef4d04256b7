package service

import "sync"

// PortfolioLocks serializes mutations per portfolio id: one active
// mutation per portfolio at a time, different portfolios independent.
type PortfolioLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewPortfolioLocks creates an empty lock set.
func NewPortfolioLocks() *PortfolioLocks {
	return &PortfolioLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for a portfolio id and returns its unlock.
// Locks are never removed from the map; the set of portfolios is small
// and long-lived.
func (l *PortfolioLocks) Lock(id int64) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
