package services

import "sync"

// sessionLocks serializes mutations per session. appendUserMessage and
// complete must never interleave on the same session; across distinct
// sessions mutations run fully parallel.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for the given session token and returns its
// unlock function. Lock entries are kept for the life of the process;
// sessions are never deleted, and the entry is two words.
func (l *sessionLocks) Acquire(token string) func() {
	l.mu.Lock()
	m, ok := l.locks[token]
	if !ok {
		m = &sync.Mutex{}
		l.locks[token] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
