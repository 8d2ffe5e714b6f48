// Package service runs background tasks of the client on a fixed pool of
// workers.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tinayla696/iotp_client_golang/service/task"
)

const QUEUE_SIZE = 16

var ErrStopped = errors.New("service: dispatcher stopped")

// Stats counts finished tasks.
type Stats struct {
	done   atomic.Int64
	failed atomic.Int64
}

func (s *Stats) Done() int64   { return s.done.Load() }
func (s *Stats) Failed() int64 { return s.failed.Load() }

type Dispatcher struct {
	workerPool chan chan task.Task
	taskQueue  chan task.Task
	shutdown   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	stats      Stats
}

func NewDispatcher(maxWorkers int) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		workerPool: make(chan chan task.Task, maxWorkers),
		taskQueue:  make(chan task.Task, QUEUE_SIZE),
		shutdown:   make(chan struct{}),
	}
}

// Run starts the workers and dispatches queued tasks until ctx is done or
// Stop is called. It returns after every worker has exited.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < cap(d.workerPool); i++ {
		w := NewWorker(i, d.workerPool, &d.stats)
		d.wg.Add(1)
		go w.Start(ctx, &d.wg)
	}

	d.dispatch(ctx)
	cancel()
	d.wg.Wait()
	zap.S().Infof("All workers have been stopped: done=%d failed=%d", d.stats.Done(), d.stats.Failed())
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	for {
		select {
		case t := <-d.taskQueue:
			var workerCh chan task.Task
			select {
			case workerCh = <-d.workerPool:
			case <-ctx.Done():
				return
			case <-d.shutdown:
				return
			}
			select {
			case workerCh <- t:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			zap.S().Info("Dispatcher shutting down")
			return
		case <-d.shutdown:
			zap.S().Info("Dispatcher stopped")
			return
		}
	}
}

// EnqueueTask queues t for the next free worker. It blocks while the queue
// is full.
func (d *Dispatcher) EnqueueTask(ctx context.Context, t task.Task) error {
	select {
	case <-d.shutdown:
		return ErrStopped
	default:
	}

	select {
	case d.taskQueue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.shutdown:
		return ErrStopped
	}
}

// Stop ends Run. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.shutdown) })
}

func (d *Dispatcher) Stats() *Stats {
	return &d.stats
}
