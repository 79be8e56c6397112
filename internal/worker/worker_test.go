package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/engine"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
	"github.com/Priya8975/newsletter-service/internal/store"
	ws "github.com/Priya8975/newsletter-service/internal/websocket"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	calls  []string
	result *newsletter.BroadcastResult
	err    error
	block  chan struct{}
	count  atomic.Int32
}

func (f *fakeBroadcaster) SendNewsletter(ctx context.Context, articleID string, lang domain.Language) (*newsletter.BroadcastResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, articleID+":"+lang.String())
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	f.count.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &newsletter.BroadcastResult{Success: true, RecipientCount: 1, AudienceSize: 1, CampaignID: "42"}, nil
}

type fakeRuns struct {
	mu       sync.Mutex
	running  map[string]bool
	outcomes map[string]store.BroadcastOutcome
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{running: map[string]bool{}, outcomes: map[string]store.BroadcastOutcome{}}
}

func (f *fakeRuns) MarkBroadcastRunning(ctx context.Context, id string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[id] = true
	return nil
}

func (f *fakeRuns) FinishBroadcastRun(ctx context.Context, id string, out store.BroadcastOutcome, finishedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[id] = out
	return nil
}

func (f *fakeRuns) outcome(id string) (store.BroadcastOutcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outcomes[id]
	return out, ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ws.BroadcastEvent
}

func (f *fakePublisher) Publish(event ws.BroadcastEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

type testDeps struct {
	client    *redis.Client
	locker    *engine.Locker
	runs      *fakeRuns
	publisher *fakePublisher
	logger    *slog.Logger
}

func setupWorkerTest(t *testing.T) testDeps {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return testDeps{
		client:    client,
		locker:    engine.NewLocker(client, logger),
		runs:      newFakeRuns(),
		publisher: &fakePublisher{},
		logger:    logger,
	}
}

func testJob(runID string) engine.BroadcastJob {
	return engine.BroadcastJob{RunID: runID, ArticleID: "a1", Language: domain.LanguagePL, RequestedBy: "admin"}
}

func TestRunner_CompletedRun(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{result: &newsletter.BroadcastResult{
		Success:        true,
		RecipientCount: 250,
		AudienceSize:   250,
		CampaignID:     "batched",
		Batches: []newsletter.BatchResult{
			{Index: 1, Size: 100, Sent: 100, Mode: newsletter.BatchCampaign, CampaignID: "1"},
		},
	}}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	result, err := r.Run(context.Background(), testJob("run-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RecipientCount != 250 {
		t.Errorf("RecipientCount = %d", result.RecipientCount)
	}

	if !d.runs.running["run-1"] {
		t.Error("run should be marked running")
	}
	out, ok := d.runs.outcome("run-1")
	if !ok {
		t.Fatal("outcome not recorded")
	}
	if out.Status != domain.RunCompleted || out.RecipientCount != 250 || out.CampaignID != "batched" {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Batches) == 0 {
		t.Error("batch details should be recorded")
	}

	types := d.publisher.types()
	if len(types) != 2 || types[0] != ws.EventStarted || types[1] != ws.EventCompleted {
		t.Errorf("events = %v", types)
	}
}

func TestRunner_PartialRun(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{result: &newsletter.BroadcastResult{Success: true, PartialFailure: true, RecipientCount: 100, AudienceSize: 200}}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	if _, err := r.Run(context.Background(), testJob("run-p")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, _ := d.runs.outcome("run-p")
	if out.Status != domain.RunPartial {
		t.Errorf("status = %q, want partial", out.Status)
	}
	types := d.publisher.types()
	if types[len(types)-1] != ws.EventPartial {
		t.Errorf("last event = %q", types[len(types)-1])
	}
}

func TestRunner_FailedRun(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{err: newsletter.ErrArticleNotPublished}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	_, err := r.Run(context.Background(), testJob("run-f"))
	if !errors.Is(err, newsletter.ErrArticleNotPublished) {
		t.Fatalf("err = %v", err)
	}

	out, _ := d.runs.outcome("run-f")
	if out.Status != domain.RunFailed || out.ErrorMessage == "" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRunner_SameArticleLanguageIsSerialized(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	lock, err := d.locker.Acquire(context.Background(), "broadcast:a1:pl", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release(context.Background())

	_, err = r.Run(context.Background(), testJob("run-dup"))
	if !errors.Is(err, ErrBroadcastInProgress) {
		t.Fatalf("err = %v, want ErrBroadcastInProgress", err)
	}
	if b.count.Load() != 0 {
		t.Error("dispatcher must not run while the lock is held")
	}
	out, _ := d.runs.outcome("run-dup")
	if out.Status != domain.RunFailed {
		t.Errorf("status = %q, want failed", out.Status)
	}

	// the other language is independent
	job := testJob("run-en")
	job.Language = domain.LanguageEN
	if _, err := r.Run(context.Background(), job); err != nil {
		t.Errorf("en run: %v", err)
	}
}

func TestRunner_ReleasesLock(t *testing.T) {
	d := setupWorkerTest(t)
	r := NewRunner(&fakeBroadcaster{}, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	for _, id := range []string{"run-a", "run-b"} {
		if _, err := r.Run(context.Background(), testJob(id)); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(2, r, d.logger)
	pool.Start(ctx)

	for i := 0; i < 5; i++ {
		job := testJob("run-pool-" + string(rune('a'+i)))
		job.ArticleID = "article-" + string(rune('a'+i))
		if err := pool.Submit(ctx, job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	time.Sleep(200 * time.Millisecond)

	cancel()
	pool.Stop()

	if got := b.count.Load(); got != 5 {
		t.Errorf("expected 5 jobs processed, got %d", got)
	}
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{block: make(chan struct{})}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	pool := NewPool(1, r, d.logger)
	pool.Start(context.Background())
	defer func() {
		close(b.block)
		pool.Stop()
	}()

	if err := pool.Submit(context.Background(), testJob("run-busy")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	job := testJob("run-waiting")
	job.ArticleID = "a2"
	if err := pool.Submit(ctx, job); err == nil {
		t.Error("Submit should fail while the only worker is busy")
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(2, r, d.logger)
	pool.Start(ctx)
	cancel()
	pool.Stop()

	for i := 0; i < 50; i++ {
		err := pool.Submit(ctx, testJob("run-late"))
		if err == nil {
			t.Fatalf("Submit %d accepted a job after Stop", i)
		}
	}
	if err := pool.Submit(context.Background(), testJob("run-late")); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("err = %v, want ErrPoolStopped", err)
	}

	// a second Stop is harmless
	pool.Stop()
	if got := b.count.Load(); got != 0 {
		t.Errorf("processed %d jobs after Stop", got)
	}
}

func TestPoller_ShutdownRequeuesClaimedJob(t *testing.T) {
	d := setupWorkerTest(t)
	queue := engine.NewBroadcastQueue(d.client, d.logger)

	job := testJob("run-shutdown")
	job.QueuedAt = time.Now().Add(-time.Second)
	if err := queue.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	// no workers: the claimed job can only be handed back
	pool := NewPool(1, NewRunner(&fakeBroadcaster{}, d.runs, d.locker, d.publisher, time.Minute, d.logger), d.logger)
	poller := NewPoller(queue, pool, 10*time.Millisecond, d.logger)

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-poller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	pool.Stop()

	depth, err := queue.Depth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if depth != 1 {
		t.Errorf("queue depth = %d, want the claimed job back in the queue", depth)
	}
}

func TestPoller_MovesQueuedJobsToPool(t *testing.T) {
	d := setupWorkerTest(t)
	b := &fakeBroadcaster{}
	r := NewRunner(b, d.runs, d.locker, d.publisher, time.Minute, d.logger)
	queue := engine.NewBroadcastQueue(d.client, d.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"run-q1", "run-q2"} {
		job := testJob(id)
		job.QueuedAt = time.Now().Add(-time.Second)
		job.ArticleID = id
		if err := queue.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	pool := NewPool(1, r, d.logger)
	pool.Start(ctx)
	poller := NewPoller(queue, pool, 10*time.Millisecond, d.logger)
	go poller.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for b.count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := b.count.Load(); got != 2 {
		t.Fatalf("processed %d jobs, want 2", got)
	}

	depth, err := queue.Depth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}
	if _, ok := d.runs.outcome("run-q1"); !ok {
		t.Error("run-q1 outcome not recorded")
	}
}

func TestPoller_RequeuesWhenPoolRefuses(t *testing.T) {
	d := setupWorkerTest(t)
	queue := engine.NewBroadcastQueue(d.client, d.logger)

	job := testJob("run-requeue")
	job.QueuedAt = time.Now().Add(-time.Second)
	if err := queue.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	// no workers started: Submit can only end through ctx
	pool := NewPool(1, NewRunner(&fakeBroadcaster{}, d.runs, d.locker, d.publisher, time.Minute, d.logger), d.logger)
	poller := NewPoller(queue, pool, time.Second, d.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	poller.poll(ctx)

	depth, err := queue.Depth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if depth != 1 {
		t.Errorf("queue depth = %d, want job back in the queue", depth)
	}
}
