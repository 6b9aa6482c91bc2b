package app

import (
	"sort"
	"sync"
)

// WalletLocks serializes wallet mutations per user.
type WalletLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewWalletLocks() *WalletLocks {
	return &WalletLocks{locks: make(map[string]*userLock)}
}

// Lock acquires the locks of every distinct user id in sorted order and returns the
// function that releases them.
func (l *WalletLocks) Lock(userIDs ...string) (unlock func()) {
	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	held := make([]*userLock, 0, len(ids))
	for _, id := range ids {
		ul := l.acquire(id)
		ul.mu.Lock()
		held = append(held, ul)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(ids[i])
		}
	}
}

func (l *WalletLocks) acquire(id string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &userLock{}
		l.locks[id] = ul
	}
	ul.refs++
	return ul
}

func (l *WalletLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul := l.locks[id]
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, id)
	}
}
