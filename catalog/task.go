package catalog

import (
	"context"
	"sync"
)

// progressBuffer bounds the Task progress channel.
const progressBuffer = 64

// Task is a sync pass running in the background.
type Task struct {
	progress chan Progress
	cancel   context.CancelFunc
	done     chan struct{}

	mu    sync.Mutex
	count int
	err   error
}

// Start runs s.Sync in a new goroutine.
func Start(ctx context.Context, s *Syncer) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		progress: make(chan Progress, progressBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer cancel()
		n, err := s.Sync(ctx, t.progress)
		t.mu.Lock()
		t.count, t.err = n, err
		t.mu.Unlock()
		close(t.progress)
	}()
	return t
}

// Progress returns the update channel. It is closed when the pass ends.
// Updates are dropped while the channel is full.
func (t *Task) Progress() <-chan Progress {
	return t.progress
}

// Cancel asks the pass to stop. Nothing is committed once cancelled.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the pass has ended.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result waits for the pass to end and returns its outcome.
func (t *Task) Result() (int, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count, t.err
}
