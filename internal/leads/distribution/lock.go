package distribution

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// pipelineLocks serialises rotation steps for the same pipeline within one
// process. Entries are dropped once nobody holds or waits on them.
type pipelineLocks struct {
	mu    sync.Mutex
	slots map[string]*pipelineSlot
}

type pipelineSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func newPipelineLocks() *pipelineLocks {
	return &pipelineLocks{slots: make(map[string]*pipelineSlot)}
}

// Lock blocks until name is free or ctx is done.
func (l *pipelineLocks) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[name]
	if !ok {
		slot = &pipelineSlot{sem: semaphore.NewWeighted(1)}
		l.slots[name] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.release(name, slot)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.release(name, slot)
		})
	}, nil
}

func (l *pipelineLocks) release(name string, slot *pipelineSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, name)
	}
}

func (l *pipelineLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
