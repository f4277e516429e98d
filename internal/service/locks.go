package service

import "sync"

// sessionLocks is a ref-counted keyed mutex; entries are dropped when nobody holds or waits.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[int64]*sessionLock)}
}

// Lock blocks until the session is free and returns the matching unlock func.
func (l *sessionLocks) Lock(sessionID int64) func() {
	return l.reserve(sessionID)()
}

// reserve registers interest in the session without blocking. The session counts as held
// from this point; the returned func waits for the mutex and yields the unlock func.
func (l *sessionLocks) reserve(sessionID int64) func() func() {
	l.mu.Lock()
	lk, ok := l.locks[sessionID]
	if !ok {
		lk = &sessionLock{}
		l.locks[sessionID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	return func() func() {
		lk.mu.Lock()
		return func() {
			lk.mu.Unlock()
			l.mu.Lock()
			lk.refs--
			if lk.refs == 0 {
				delete(l.locks, sessionID)
			}
			l.mu.Unlock()
		}
	}
}

// held lists sessions that are locked or waited on.
func (l *sessionLocks) held() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(l.locks))
	for id := range l.locks {
		ids = append(ids, id)
	}
	return ids
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
