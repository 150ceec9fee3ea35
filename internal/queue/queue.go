package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("queue: manager is shut down")

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager runs jobs on a fixed number of workers fed from a
// bounded channel. A full channel blocks Enqueue, which is the back pressure.
type RequestQueueManager struct {
	jobQueue   chan Job
	MaxWorkers int
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRequestQueueManager(queueSize int, maxWorkers int, logger *slog.Logger) *RequestQueueManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := &RequestQueueManager{
		jobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
		logger:     logger,
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			rqm.logger.Debug("queue worker started", slog.Int("worker", workerID))
			for job := range rqm.jobQueue {
				err := job.Fn()
				if job.Errc != nil {
					job.Errc <- err
				}
			}
			rqm.logger.Debug("queue worker stopped", slog.Int("worker", workerID))
		}(i)
	}
}

// Enqueue hands job to the workers, waiting for room in the channel until ctx
// is done.
func (rqm *RequestQueueManager) Enqueue(ctx context.Context, job Job) error {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return ErrClosed
	}
	select {
	case rqm.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on a worker and waits for its result.
func (rqm *RequestQueueManager) Do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := rqm.Enqueue(ctx, Job{Fn: fn, Errc: errc}); err != nil {
		return err
	}
	return <-errc
}

// Depth is the number of jobs waiting for a worker.
func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.jobQueue)
}

// Shutdown stops accepting jobs, drains what is queued and waits for the
// workers to exit. It is safe to call more than once.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.mu.Lock()
	if rqm.closed {
		rqm.mu.Unlock()
		return
	}
	rqm.closed = true
	close(rqm.jobQueue)
	rqm.mu.Unlock()
	rqm.wg.Wait()
}
