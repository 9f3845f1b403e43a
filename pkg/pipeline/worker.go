package pipeline

import (
	"context"
	"sync"
)

type WorkerPool struct {
	workers    int
	taskQueue  chan *job
	workerFunc func(context.Context, *job)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int, workerFunc func(context.Context, *job)) *WorkerPool {
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *job, queueSize),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// TrySubmit queues j without blocking and reports whether it was accepted.
func (wp *WorkerPool) TrySubmit(j *job) bool {
	select {
	case wp.taskQueue <- j:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for the workers. No TrySubmit may run
// concurrently with or after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case j, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, j)

		case <-ctx.Done():
			return
		}
	}
}
