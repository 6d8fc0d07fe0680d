package oauth2

import (
	"sync"
	"sync/atomic"
)

// providerLock serializes token mutations of one provider. generation is bumped
// after every mutation attempt so a caller that waited on mu can tell that the
// credential was already handled while it was blocked.
type providerLock struct {
	mu         sync.Mutex
	generation atomic.Uint64
}

type providerLocks struct {
	mu    sync.Mutex
	locks map[string]*providerLock
}

func newProviderLocks() *providerLocks {
	return &providerLocks{locks: make(map[string]*providerLock)}
}

func (l *providerLocks) get(provider string) *providerLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[provider]
	if !ok {
		lock = &providerLock{}
		l.locks[provider] = lock
	}
	return lock
}

// acquire locks the provider and returns a release func that bumps the generation
func (l *providerLock) acquire() func() {
	l.mu.Lock()
	return func() {
		l.generation.Add(1)
		l.mu.Unlock()
	}
}
