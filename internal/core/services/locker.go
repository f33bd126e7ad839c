package services

import (
	"context"
	"sync"
)

// LocalResidentLocker is a keyed mutex living in this process. Use the Redis
// locker when more than one instance shares the database.
type LocalResidentLocker struct {
	mu    sync.Mutex
	locks map[uint]*residentLock
}

type residentLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalResidentLocker creates an in-process locker
func NewLocalResidentLocker() *LocalResidentLocker {
	return &LocalResidentLocker{locks: make(map[uint]*residentLock)}
}

// Lock blocks until the resident is free or ctx is done
func (l *LocalResidentLocker) Lock(ctx context.Context, residentID uint) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[residentID]
	if !ok {
		entry = &residentLock{sem: make(chan struct{}, 1)}
		l.locks[residentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(residentID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(residentID, entry)
		})
	}, nil
}

func (l *LocalResidentLocker) release(residentID uint, entry *residentLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, residentID)
	}
}
