package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Priya8975/newsletter-service/internal/engine"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
)

// ErrPoolStopped is returned by Submit once Stop has been called.
var ErrPoolStopped = errors.New("worker pool stopped")

// JobRunner executes one broadcast job.
type JobRunner interface {
	Run(ctx context.Context, job engine.BroadcastJob) (*newsletter.BroadcastResult, error)
}

// Pool manages a fixed number of worker goroutines that run broadcast jobs.
// With one worker, broadcasts run strictly one after another.
type Pool struct {
	numWorkers int
	jobs       chan engine.BroadcastJob
	runner     JobRunner
	logger     *slog.Logger
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewPool(numWorkers int, runner JobRunner, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		// unbuffered: a job is either handed to an idle worker or refused
		jobs:   make(chan engine.BroadcastJob),
		runner: runner,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// Start launches all worker goroutines. They stop when ctx is cancelled or
// the pool is stopped.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit blocks until a worker takes the job, ctx ends or the pool stops.
// The job is not accepted when an error is returned.
func (p *Pool) Submit(ctx context.Context, job engine.BroadcastJob) error {
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolStopped
	}
}

// Stop signals the workers and waits for running jobs to finish. The jobs
// channel is never closed, so a late Submit cannot panic.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case job := <-p.jobs:
			if _, err := p.runner.Run(ctx, job); err != nil {
				p.logger.Error("broadcast job failed", "worker", id, "run_id", job.RunID, "error", err)
			}
		}
	}
}
