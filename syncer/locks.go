package syncer

import "sync"

// walletLocks serializes sync attempts per wallet while leaving distinct
// wallets fully parallel. Entries are refcounted and dropped once
// uncontended, so the map does not grow with the set of wallets ever seen.
type walletLocks struct {
	mu    sync.Mutex
	locks map[string]*walletLock
}

type walletLock struct {
	mu   sync.Mutex
	refs int
}

func newWalletLocks() *walletLocks {
	return &walletLocks{locks: make(map[string]*walletLock)}
}

// acquire blocks until the wallet's lock is held and returns the release
// function.
func (l *walletLocks) acquire(wallet string) func() {
	l.mu.Lock()
	entry, ok := l.locks[wallet]
	if !ok {
		entry = &walletLock{}
		l.locks[wallet] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, wallet)
		}
		l.mu.Unlock()
	}
}
