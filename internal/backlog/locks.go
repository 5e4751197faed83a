package backlog

import "sync"

// recordLocks hands out one mutex per game id. Entries are dropped once no
// caller holds or waits on them.
type recordLocks struct {
	mu sync.Mutex
	m  map[int64]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until the caller owns id and returns the matching unlock.
func (l *recordLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*recordLock)
	}
	rl, ok := l.m[id]
	if !ok {
		rl = &recordLock{}
		l.m[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
