package inmemory

import (
	"context"
	"sort"
	"sync"
)

// Locker serializes callers on string keys within one process.
type Locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{slots: make(map[string]chan struct{})}
}

// Lock takes every key in sorted order, runs fn and releases them.
func (l *Locker) Lock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	acquired := make([]chan struct{}, 0, len(sorted))
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-acquired[i]
		}
	}()

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		slot := l.slot(key)
		select {
		case slot <- struct{}{}:
			acquired = append(acquired, slot)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fn(ctx)
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}
