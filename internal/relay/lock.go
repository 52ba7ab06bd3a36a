package relay

import (
	"context"
	"sync"
)

// dirLocks maps a scratch directory to a one-slot semaphore.
var dirLocks sync.Map

// acquire blocks until the scratch directory is free or ctx is done.
func acquire(ctx context.Context, dir string) (func(), error) {
	v, _ := dirLocks.LoadOrStore(dir, make(chan struct{}, 1))
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}
