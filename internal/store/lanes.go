package store

import (
	"context"
	"sync"
)

// lanes runs work for the same key one caller at a time, in the order callers
// arrived. Different keys do not wait on each other.
type lanes struct {
	mu sync.Mutex
	m  map[string][]chan struct{}
}

func newLanes() *lanes {
	return &lanes{m: make(map[string][]chan struct{})}
}

// acquire blocks until the caller heads the queue for key or ctx is done.
func (l *lanes) acquire(ctx context.Context, key string) (release func(), err error) {
	turn := make(chan struct{})
	l.mu.Lock()
	l.m[key] = append(l.m[key], turn)
	if len(l.m[key]) == 1 {
		close(turn)
	}
	l.mu.Unlock()

	select {
	case <-turn:
		return func() { l.release(key) }, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-turn:
		// Became head while giving up; pass the turn on.
		l.mu.Unlock()
		l.release(key)
		return nil, ctx.Err()
	default:
	}
	q := l.m[key]
	for i, ch := range q {
		if ch == turn {
			l.m[key] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	return nil, ctx.Err()
}

func (l *lanes) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.m[key][1:]
	if len(q) == 0 {
		delete(l.m, key)
		return
	}
	l.m[key] = q
	close(q[0])
}

func (l *lanes) busy() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
