package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestQueue(t *testing.T) (*BroadcastQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcastQueue(client, logger), mr
}

func TestBroadcastQueue_ClaimsInOrder(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		err := q.Enqueue(ctx, BroadcastJob{
			RunID:     id,
			ArticleID: "a1",
			Language:  domain.LanguagePL,
			QueuedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if depth, _ := q.Depth(ctx); depth != 3 {
		t.Errorf("depth = %d, want 3", depth)
	}

	jobs, err := q.Claim(ctx, 2)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(jobs) != 2 || jobs[0].RunID != "run-1" || jobs[1].RunID != "run-2" {
		t.Errorf("claimed = %+v, want run-1 and run-2", jobs)
	}
	if depth, _ := q.Depth(ctx); depth != 1 {
		t.Errorf("depth after claim = %d, want 1", depth)
	}
}

func TestBroadcastQueue_EmptyClaim(t *testing.T) {
	q, _ := setupTestQueue(t)

	jobs, err := q.Claim(context.Background(), 5)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("claimed %d jobs from an empty queue", len(jobs))
	}
}

func TestBroadcastQueue_SkipsMalformedMembers(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	mr.ZAdd(BroadcastQueueKey, 1, "not json")
	if err := q.Enqueue(ctx, BroadcastJob{RunID: "run-ok", ArticleID: "a1", Language: domain.LanguageEN, QueuedAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatal(err)
	}

	jobs, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].RunID != "run-ok" {
		t.Errorf("claimed = %+v", jobs)
	}
}
