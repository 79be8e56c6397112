package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/newsletter-service/internal/engine"
)

// Poller moves jobs from the Redis broadcast queue into the worker pool.
type Poller struct {
	queue        *engine.BroadcastQueue
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	done         chan struct{}
}

func NewPoller(queue *engine.BroadcastQueue, pool *Pool, pollInterval time.Duration, logger *slog.Logger) *Poller {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Poller{
		queue:        queue,
		pool:         pool,
		logger:       logger,
		pollInterval: pollInterval,
		done:         make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled. Done is closed when
// it returns.
func (p *Poller) Start(ctx context.Context) {
	defer close(p.done)
	p.logger.Info("broadcast poller started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("broadcast poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Done is closed once Start has returned, so no job is mid-handoff.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// poll claims one job at a time so nothing sits claimed while every worker
// is busy. A job that cannot be handed over goes back to the queue.
func (p *Poller) poll(ctx context.Context) {
	jobs, err := p.queue.Claim(ctx, 1)
	if err != nil {
		p.logger.Error("failed to poll broadcast queue", "error", err)
		return
	}

	for _, job := range jobs {
		if err := p.pool.Submit(ctx, job); err != nil {
			requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := p.queue.Enqueue(requeueCtx, job); err != nil {
				p.logger.Error("failed to requeue broadcast job", "run_id", job.RunID, "error", err)
			}
			cancel()
		}
	}
}
