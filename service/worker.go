package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/service/task"
)

type Worker struct {
	id         int
	workerPool chan chan task.Task
	TaskCh     chan task.Task
	stats      *Stats
}

func NewWorker(id int, workerPool chan chan task.Task, stats *Stats) *Worker {
	return &Worker{
		id:         id,
		workerPool: workerPool,
		TaskCh:     make(chan task.Task),
		stats:      stats,
	}
}

// Start offers the worker to the pool and runs tasks until ctx is done.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case w.workerPool <- w.TaskCh:
		case <-ctx.Done():
			return
		}

		select {
		case t := <-w.TaskCh:
			if err := t.Execute(ctx); err != nil {
				zap.S().Errorf("Worker %d: %s failed: %v", w.id, t, err)
				w.stats.failed.Add(1)
				continue
			}
			w.stats.done.Add(1)
		case <-ctx.Done():
			return
		}
	}
}
