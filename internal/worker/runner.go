package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/engine"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
	"github.com/Priya8975/newsletter-service/internal/store"
	ws "github.com/Priya8975/newsletter-service/internal/websocket"
)

// ErrBroadcastInProgress is returned when the same article and language is
// already being sent.
var ErrBroadcastInProgress = errors.New("broadcast already in progress")

type Broadcaster interface {
	SendNewsletter(ctx context.Context, articleID string, lang domain.Language) (*newsletter.BroadcastResult, error)
}

// RunRecorder persists the audit trail of broadcast runs.
type RunRecorder interface {
	MarkBroadcastRunning(ctx context.Context, id string, startedAt time.Time) error
	FinishBroadcastRun(ctx context.Context, id string, out store.BroadcastOutcome, finishedAt time.Time) error
}

type EventPublisher interface {
	Publish(event ws.BroadcastEvent)
}

// Runner executes broadcast jobs: it serializes sends per article and
// language, calls the dispatcher and records the outcome.
type Runner struct {
	broadcaster Broadcaster
	runs        RunRecorder
	locker      *engine.Locker
	events      EventPublisher
	lockTTL     time.Duration
	logger      *slog.Logger
}

func NewRunner(broadcaster Broadcaster, runs RunRecorder, locker *engine.Locker, events EventPublisher, lockTTL time.Duration, logger *slog.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}
	return &Runner{
		broadcaster: broadcaster,
		runs:        runs,
		locker:      locker,
		events:      events,
		lockTTL:     lockTTL,
		logger:      logger,
	}
}

// Run sends one broadcast. Cancelling ctx interrupts the pause between
// batches; the remaining batches are then reported as skipped.
func (r *Runner) Run(ctx context.Context, job engine.BroadcastJob) (*newsletter.BroadcastResult, error) {
	logger := r.logger.With("run_id", job.RunID, "article_id", job.ArticleID, "language", job.Language)

	lock, err := r.locker.Acquire(ctx, fmt.Sprintf("broadcast:%s:%s", job.ArticleID, job.Language), r.lockTTL)
	if err != nil {
		if errors.Is(err, engine.ErrLockHeld) {
			err = ErrBroadcastInProgress
		}
		r.finish(ctx, job, nil, err, logger)
		return nil, err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	if err := r.runs.MarkBroadcastRunning(ctx, job.RunID, time.Now().UTC()); err != nil {
		logger.Error("failed to mark broadcast running", "error", err)
	}
	r.publish(ws.BroadcastEvent{Type: ws.EventStarted, RunID: job.RunID, ArticleID: job.ArticleID, Language: job.Language.String()})

	start := time.Now()
	result, err := r.broadcaster.SendNewsletter(ctx, job.ArticleID, job.Language)
	logger.Info("broadcast run finished", "duration_ms", time.Since(start).Milliseconds(), "error", err)

	r.finish(ctx, job, result, err, logger)
	return result, err
}

func (r *Runner) finish(ctx context.Context, job engine.BroadcastJob, result *newsletter.BroadcastResult, runErr error, logger *slog.Logger) {
	out := store.BroadcastOutcome{Status: domain.RunCompleted}
	event := ws.BroadcastEvent{
		Type:      ws.EventCompleted,
		RunID:     job.RunID,
		ArticleID: job.ArticleID,
		Language:  job.Language.String(),
	}

	switch {
	case runErr != nil:
		out.Status = domain.RunFailed
		out.ErrorMessage = runErr.Error()
		event.Type = ws.EventFailed
		event.Error = runErr.Error()
	case result.PartialFailure:
		out.Status = domain.RunPartial
		event.Type = ws.EventPartial
	}

	if result != nil {
		out.AudienceSize = result.AudienceSize
		out.RecipientCount = result.RecipientCount
		out.CampaignID = result.CampaignID
		if len(result.Batches) > 0 {
			if b, err := json.Marshal(result.Batches); err == nil {
				out.Batches = b
			}
		}
		event.Recipients = result.AudienceSize
		event.Sent = result.RecipientCount
		event.CampaignID = result.CampaignID
	}

	// the run may have been cancelled, the audit row must still be written
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.runs.FinishBroadcastRun(recordCtx, job.RunID, out, time.Now().UTC()); err != nil {
		logger.Error("failed to record broadcast result", "error", err)
	}

	r.publish(event)
}

func (r *Runner) publish(event ws.BroadcastEvent) {
	if r.events != nil {
		r.events.Publish(event)
	}
}
