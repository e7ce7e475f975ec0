package engine

import (
	"context"
	"sync"

	"github.com/roach88/roastery/internal/domain"
)

// lockSet hands out one exclusive lock per material.
//
// Locks are acquired in sorted id order, so two callers with overlapping
// material sets cannot deadlock. Each lock is a one-slot channel so that
// waiting honors context cancellation.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]chan struct{})}
}

func (l *lockSet) get(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	return ch
}

// Acquire locks every material in ids and returns a release func.
// On cancellation, locks already taken are released and ctx.Err() returned.
func (l *lockSet) Acquire(ctx context.Context, ids ...string) (func(), error) {
	sorted := domain.SortedIDs(ids...)
	held := make([]chan struct{}, 0, len(sorted))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		ch := l.get(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
