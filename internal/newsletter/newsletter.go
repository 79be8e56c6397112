// Package newsletter implements the double opt-in subscription flow and the
// article broadcast dispatcher on top of an external mailing-list provider.
package newsletter

import (
	"context"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
)

const (
	// CampaignRecipientLimit is the largest audience sent as one campaign.
	CampaignRecipientLimit = 100
	// ListAddChunkSize is the provider limit of contacts per add-to-list call.
	ListAddChunkSize = 150
	// FallbackChunkSize is the number of recipients per transactional call.
	FallbackChunkSize = 50
	// AudiencePageSize is the page size used to read a language list.
	AudiencePageSize = 500

	DefaultBatchDelay    = 2 * time.Minute
	DefaultFallbackDelay = 100 * time.Millisecond
	DefaultPendingTTL    = 24 * time.Hour

	DefaultSource = "website"

	// CampaignIDFallback marks a send delivered through transactional email.
	CampaignIDFallback = "transactional-fallback"
	// CampaignIDBatched marks a multi-batch send; per-batch IDs are in Batches.
	CampaignIDBatched = "batched"
)

// ListIDs maps each language to its provider list.
type ListIDs struct {
	PL int64
	EN int64
}

func (l ListIDs) For(lang domain.Language) int64 {
	if lang == domain.LanguageEN {
		return l.EN
	}
	return l.PL
}

// PendingStore persists pending subscriptions.
type PendingStore interface {
	// ReplacePending removes any pending record for p.Email and inserts p.
	ReplacePending(ctx context.Context, p *domain.PendingSubscription) error
	// GetPendingByToken returns nil, nil when no record matches.
	GetPendingByToken(ctx context.Context, token string) (*domain.PendingSubscription, error)
	DeletePending(ctx context.Context, id string) error
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)
}

type FeedbackStore interface {
	InsertUnsubscribeFeedback(ctx context.Context, f *domain.UnsubscribeFeedback) error
}

// ArticleStore returns nil, nil for unknown articles.
type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (*domain.Article, error)
}

// StatsCache caches subscriber counts. GetCachedStats returns nil, nil on a miss.
type StatsCache interface {
	GetCachedStats(ctx context.Context) (*domain.SubscriberStats, error)
	SetCachedStats(ctx context.Context, stats domain.SubscriberStats, ttl time.Duration) error
	InvalidateStats(ctx context.Context) error
}

// CampaignGuard short-circuits campaign creation after repeated failures.
type CampaignGuard interface {
	AllowRequest(ctx context.Context, key string) (string, bool)
	RecordSuccess(ctx context.Context, key string)
	RecordFailure(ctx context.Context, key string)
}

// ProgressReporter receives broadcast progress events.
type ProgressReporter interface {
	ReportProgress(p Progress)
}

// Progress stages.
const (
	StageStarted   = "started"
	StageBatchDone = "batch_completed"
	StageBatchFail = "batch_failed"
	StageWaiting   = "waiting"
	StageCompleted = "completed"
)

type Progress struct {
	ArticleID  string
	Language   domain.Language
	Stage      string
	Batch      int
	Batches    int
	Recipients int
	Sent       int
	CampaignID string
	Error      string
	Timestamp  time.Time
}
