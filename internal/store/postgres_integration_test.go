package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/google/uuid"
)

// setupPostgres connects to TEST_DATABASE_URL and applies the migrations.
// The test is skipped when the variable is unset.
func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.RunMigrations(ctx, filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	for _, table := range []string{"pending_subscriptions", "unsubscribe_feedback", "broadcast_runs", "articles"} {
		if _, err := s.pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
	return s
}

func newPending(email string, expiresAt time.Time) *domain.PendingSubscription {
	return &domain.PendingSubscription{
		ID:        uuid.NewString(),
		Email:     email,
		Language:  domain.LanguagePL,
		Source:    "website",
		Token:     uuid.NewString(),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestPostgres_PendingLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	first := newPending("alice@example.com", future)
	if err := s.ReplacePending(ctx, first); err != nil {
		t.Fatalf("ReplacePending: %v", err)
	}
	second := newPending("alice@example.com", future)
	if err := s.ReplacePending(ctx, second); err != nil {
		t.Fatalf("ReplacePending: %v", err)
	}

	if n, _ := s.CountPending(ctx); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}
	if p, err := s.GetPendingByToken(ctx, first.Token); err != nil || p != nil {
		t.Errorf("first token lookup = %+v, %v; want nil, nil", p, err)
	}
	got, err := s.GetPendingByToken(ctx, second.Token)
	if err != nil || got == nil {
		t.Fatalf("second token lookup = %+v, %v", got, err)
	}
	if got.Email != "alice@example.com" || got.Language != domain.LanguagePL {
		t.Errorf("record = %+v", got)
	}

	if err := s.DeletePending(ctx, got.ID); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetPendingByToken(ctx, second.Token); p != nil {
		t.Error("record should be deleted")
	}
}

func TestPostgres_DeleteExpiredPending(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Now()

	s.ReplacePending(ctx, newPending("old@example.com", now.Add(-time.Hour)))
	s.ReplacePending(ctx, newPending("new@example.com", now.Add(time.Hour)))

	n, err := s.DeleteExpiredPending(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestPostgres_Feedback(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	text := "too much"

	for _, r := range []domain.UnsubscribeReason{domain.ReasonSpam, domain.ReasonSpam, domain.ReasonOther} {
		err := s.InsertUnsubscribeFeedback(ctx, &domain.UnsubscribeFeedback{
			ID: uuid.NewString(), Email: "a@example.com", Reason: r, Feedback: &text,
			Language: domain.LanguageEN, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	spam, err := s.ListUnsubscribeFeedback(ctx, domain.ReasonSpam, 10)
	if err != nil || len(spam) != 2 {
		t.Errorf("spam entries = %d, %v; want 2", len(spam), err)
	}
	counts, err := s.FeedbackReasonCounts(ctx)
	if err != nil || len(counts) != 2 || counts[0].Reason != domain.ReasonSpam || counts[0].Count != 2 {
		t.Errorf("counts = %+v, %v", counts, err)
	}
}

func TestPostgres_ArticleAndBroadcastRun(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO articles (id, title_pl, slug_pl, is_published, published_at)
		VALUES ('a1', 'Tytuł', 'tytul', true, NOW())
	`)
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.GetArticle(ctx, "a1")
	if err != nil || a == nil || a.Title.Resolve(domain.LanguageEN) != "Tytuł" || !a.IsPublished {
		t.Errorf("article = %+v, %v", a, err)
	}
	if missing, err := s.GetArticle(ctx, "nope"); missing != nil || err != nil {
		t.Errorf("missing article = %+v, %v", missing, err)
	}

	run := &domain.BroadcastRun{ID: uuid.NewString(), ArticleID: "a1", Language: domain.LanguagePL, Status: domain.RunQueued, RequestedBy: "admin"}
	if err := s.CreateBroadcastRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkBroadcastRunning(ctx, run.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	batches, _ := json.Marshal([]map[string]int{{"size": 100, "sent": 100}})
	err = s.FinishBroadcastRun(ctx, run.ID, BroadcastOutcome{
		Status: domain.RunCompleted, AudienceSize: 100, RecipientCount: 100, CampaignID: "42", Batches: batches,
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBroadcastRun(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetBroadcastRun = %+v, %v", got, err)
	}
	if got.Status != domain.RunCompleted || got.CampaignID == nil || *got.CampaignID != "42" || got.FinishedAt == nil {
		t.Errorf("run = %+v", got)
	}

	m, err := s.GetNewsletterMetrics(ctx)
	if err != nil || m.BroadcastRuns != 1 || m.RecipientsReached != 100 {
		t.Errorf("metrics = %+v, %v", m, err)
	}
}
