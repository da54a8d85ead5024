package imagehost

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned after Close.
var ErrDispatcherClosed = errors.New("image dispatcher is closed")

// LocalDispatcher processes jobs on goroutines of this process.
type LocalDispatcher struct {
	processor *Processor
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

var _ Dispatcher = (*LocalDispatcher)(nil)

func NewLocalDispatcher(processor *Processor) *LocalDispatcher {
	return &LocalDispatcher{processor: processor}
}

// Dispatch returns immediately; the job outlives the request context.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.processor.Process(context.WithoutCancel(ctx), job)
	}()
	return nil
}

// Close stops accepting jobs and waits for running ones until ctx expires.
func (d *LocalDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
