// Package locker provides advisory per-key locks with a bounded wait.
// Mutations to the same content item are serialized through it; different
// content items never block each other. Draft and publication locks use
// distinct key namespaces, so publishing never blocks editing.
package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/types"
)

// DefaultWait is how long Acquire blocks before giving up.
const DefaultWait = 5 * time.Second

type Locker struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
	wait time.Duration
}

func New(wait time.Duration) *Locker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Locker{
		sems: make(map[string]chan struct{}),
		wait: wait,
	}
}

func (l *Locker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[key] = s
	}
	return s
}

// Acquire takes the lock for key, waiting up to the configured bound. The
// returned release function is safe to call exactly once and must run on
// every exit path, typically via defer.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.sem(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, fmt.Errorf("lock %q held beyond %s: %w", key, l.wait, types.ErrConcurrentModification)
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %q: %w", key, ctx.Err())
	}
}
