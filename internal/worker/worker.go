package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue   chan Task
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closing     bool
	taskTimeout time.Duration
	logger      *zap.Logger
}

func NewWorkerPool(size, queueSize int, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	wp := &WorkerPool{
		taskQueue:   make(chan Task, queueSize),
		taskTimeout: 5 * time.Second,
		logger:      logger,
	}

	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker task panicked", zap.Any("panic", r))
		}
	}()

	if err := task(ctx); err != nil {
		wp.logger.Warn("worker task failed", zap.Error(err))
	}
}

// Submit queues t without blocking. It reports false when the task was dropped.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closing {
		wp.logger.Warn("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		wp.logger.Warn("task queue full, dropping task")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closing {
		wp.mu.Unlock()
		return
	}
	wp.closing = true
	close(wp.taskQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}
