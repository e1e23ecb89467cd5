package interview

import "sync"

// sessionLocks serializes mutations per customer. The store's optimistic
// version check covers cross-process races; this keeps a single process from
// interleaving its own read-modify-write cycles on the same session.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns its unlock function.
func (sl *sessionLocks) acquire(key string) func() {
	sl.mu.Lock()
	lock, ok := sl.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		sl.locks[key] = lock
	}
	sl.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
