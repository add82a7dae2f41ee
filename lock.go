package webserial

import (
	"context"
	"sync"
)

// opLock is the session's exclusive operation lock: a bounded channel
// holding a single permit. Receiving the permit slot is atomic under the Go
// scheduler, so two acquirers can never both install themselves as holder.
// At most one release closure is live per session at any instant.
type opLock struct {
	permits chan struct{}
}

func newOpLock() *opLock {
	return &opLock{permits: make(chan struct{}, 1)}
}

// Acquire blocks until any existing holder releases, then installs the
// caller as holder. The returned closure releases the lock; calling it more
// than once is a no-op.
func (l *opLock) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-l.permits })
	}, nil
}

// WaitIdle blocks until no holder is present, without holding the lock on
// return. Operations ordered behind the current holder but not mutually
// ordered among themselves (read, write, drain, flush, signals) gate on
// this.
func (l *opLock) WaitIdle(ctx context.Context) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	release()
	return nil
}
