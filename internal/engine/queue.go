package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const BroadcastQueueKey = "broadcast_queue"

// BroadcastJob is one queued newsletter send.
type BroadcastJob struct {
	RunID       string          `json:"run_id"`
	ArticleID   string          `json:"article_id"`
	Language    domain.Language `json:"language"`
	RequestedBy string          `json:"requested_by"`
	QueuedAt    time.Time       `json:"queued_at"`
}

// BroadcastQueue keeps pending broadcast jobs in a Redis sorted set scored by
// enqueue time, so queued work survives a restart.
type BroadcastQueue struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcastQueue(redisClient *redis.Client, logger *slog.Logger) *BroadcastQueue {
	return &BroadcastQueue{redisClient: redisClient, logger: logger}
}

func (q *BroadcastQueue) Enqueue(ctx context.Context, job BroadcastJob) error {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling broadcast job: %w", err)
	}

	err = q.redisClient.ZAdd(ctx, BroadcastQueueKey, redis.Z{
		Score:  float64(job.QueuedAt.UnixMicro()),
		Member: string(jobBytes),
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing broadcast job: %w", err)
	}

	q.logger.Info("broadcast queued",
		"run_id", job.RunID,
		"article_id", job.ArticleID,
		"language", job.Language,
	)
	return nil
}

// Claim removes and returns up to n of the oldest jobs. A job removed by
// another instance first is skipped, so each job is claimed once.
func (q *BroadcastQueue) Claim(ctx context.Context, n int64) ([]BroadcastJob, error) {
	results, err := q.redisClient.ZRangeByScore(ctx, BroadcastQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMicro(), 10),
		Count: n,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling broadcast queue: %w", err)
	}

	var jobs []BroadcastJob
	for _, member := range results {
		removed, err := q.redisClient.ZRem(ctx, BroadcastQueueKey, member).Result()
		if err != nil {
			q.logger.Error("failed to remove job from queue", "error", err)
			continue
		}
		if removed == 0 {
			continue
		}

		var job BroadcastJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Error("failed to unmarshal broadcast job", "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Depth returns the number of jobs waiting in the queue.
func (q *BroadcastQueue) Depth(ctx context.Context) (int64, error) {
	return q.redisClient.ZCard(ctx, BroadcastQueueKey).Result()
}
