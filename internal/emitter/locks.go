package emitter

import (
	"context"
	"sync"

	"github.com/rezonia/wsfe-client/internal/model"
)

type tupleKey struct {
	account     string
	pointOfSale int
	voucherType model.VoucherType
}

type invoiceKey struct {
	account string
	invoice string
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// keyedLocks is a set of mutexes keyed by K. Waiting honours ctx. An entry
// lives only while someone holds or waits for it.
type keyedLocks[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyedLock
}

func newKeyedLocks[K comparable]() *keyedLocks[K] {
	return &keyedLocks[K]{locks: make(map[K]*keyedLock)}
}

func (l *keyedLocks[K]) ref(key K) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *keyedLocks[K]) unref(key K, lk *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *keyedLocks[K]) acquire(ctx context.Context, key K) (func(), error) {
	lk := l.ref(key)
	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.unref(key, lk)
		}, nil
	case <-ctx.Done():
		l.unref(key, lk)
		return nil, ctx.Err()
	}
}

func (l *keyedLocks[K]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
