// Package lock keeps incremental sync runs from overlapping.
//
// A LocalGuard covers runs inside one process (a slow run plus an eager
// ticker). A RedisGuard covers several processes pointed at the same table.
// Chain combines them.
package lock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Guard is a non-blocking mutual-exclusion token.
type Guard interface {
	// TryAcquire takes the guard without waiting. When ok is false another
	// holder has it. release must be called exactly once after a successful
	// acquire.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalGuard is an in-process guard.
type LocalGuard struct {
	sem *semaphore.Weighted
}

func NewLocal() *LocalGuard {
	return &LocalGuard{sem: semaphore.NewWeighted(1)}
}

func (g *LocalGuard) TryAcquire(context.Context) (func(), bool, error) {
	if !g.sem.TryAcquire(1) {
		return nil, false, nil
	}
	return func() { g.sem.Release(1) }, true, nil
}

// Chain acquires guards in order and releases them in reverse. If any guard
// is busy or fails, the ones already taken are released.
type Chain []Guard

func (c Chain) TryAcquire(ctx context.Context) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	unwind := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, g := range c {
		if g == nil {
			continue
		}
		release, ok, err := g.TryAcquire(ctx)
		if err != nil || !ok {
			unwind()
			return nil, false, err
		}
		releases = append(releases, release)
	}
	return unwind, true, nil
}
