package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotStarted is returned when work is submitted to a stopped pool.
var ErrNotStarted = errors.New("worker pool not started")

// Job is a unit of CPU bound work such as generating one derivative.
type Job func(context.Context) error

// WorkerPool bounds how many derivatives are generated at once. Callers block
// until their job has run and receive its error.
type WorkerPool struct {
	maxWorkers  int
	queue       chan queuedJob
	workerWg    sync.WaitGroup
	quit        chan struct{}
	activeCount int32
	totalJobs   int64
	failedJobs  int64
	avgExecTime int64 // nanoseconds
	started     bool
	mu          sync.RWMutex
}

type queuedJob struct {
	ctx  context.Context
	job  Job
	done chan error
}

// NewWorkerPool creates a pool with maxWorkers goroutines and a queue ten
// times that deep.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &WorkerPool{
		maxWorkers: maxWorkers,
		queue:      make(chan queuedJob, maxWorkers*10),
		quit:       make(chan struct{}),
	}
}

// Start launches the workers.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("worker pool already started")
	}

	for i := 0; i < p.maxWorkers; i++ {
		p.workerWg.Add(1)
		go p.worker()
	}

	p.started = true
	return nil
}

func (p *WorkerPool) worker() {
	defer p.workerWg.Done()

	for {
		select {
		case q := <-p.queue:
			// The submitter may have given up while the job sat in the queue.
			if err := q.ctx.Err(); err != nil {
				q.done <- err
				continue
			}
			q.done <- p.run(q.ctx, q.job)

		case <-p.quit:
			return
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, job Job) error {
	start := time.Now()
	atomic.AddInt32(&p.activeCount, 1)
	atomic.AddInt64(&p.totalJobs, 1)
	defer atomic.AddInt32(&p.activeCount, -1)

	err := job(ctx)
	if err != nil {
		atomic.AddInt64(&p.failedJobs, 1)
	}

	// Exponential moving average, weight 1/10 for the newest sample.
	elapsed := time.Since(start).Nanoseconds()
	oldAvg := atomic.LoadInt64(&p.avgExecTime)
	atomic.StoreInt64(&p.avgExecTime, (oldAvg*9+elapsed)/10)

	return err
}

// Do queues job and waits for its result. When the queue is full the job
// runs on the caller's goroutine instead of being rejected.
func (p *WorkerPool) Do(ctx context.Context, job Job) error {
	p.mu.RLock()
	if !p.started {
		p.mu.RUnlock()
		return ErrNotStarted
	}
	p.mu.RUnlock()

	q := queuedJob{ctx: ctx, job: job, done: make(chan error, 1)}

	select {
	case p.queue <- q:
		select {
		case err := <-q.done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return p.run(ctx, job)
	}
}

// Stop waits for the workers to exit. Jobs still queued are abandoned; their
// callers return when their context ends.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	close(p.quit)
	p.workerWg.Wait()
	p.started = false
}

// WorkerPoolStats is a snapshot of pool counters.
type WorkerPoolStats struct {
	MaxWorkers    int
	ActiveWorkers int32
	TotalJobs     int64
	FailedJobs    int64
	AvgExecTime   time.Duration
	QueueSize     int
}

// GetStats returns current statistics
func (p *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		MaxWorkers:    p.maxWorkers,
		ActiveWorkers: atomic.LoadInt32(&p.activeCount),
		TotalJobs:     atomic.LoadInt64(&p.totalJobs),
		FailedJobs:    atomic.LoadInt64(&p.failedJobs),
		AvgExecTime:   time.Duration(atomic.LoadInt64(&p.avgExecTime)),
		QueueSize:     len(p.queue),
	}
}
