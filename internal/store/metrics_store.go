package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/newsletter-service/internal/domain"
)

// NewsletterMetrics holds aggregated counts for the admin dashboard.
type NewsletterMetrics struct {
	PendingSubscriptions int                  `json:"pending_subscriptions"`
	ExpiredPending       int                  `json:"expired_pending"`
	Unsubscribes         int                  `json:"unsubscribes"`
	UnsubscribesByReason []domain.ReasonCount `json:"unsubscribes_by_reason"`
	BroadcastRuns        int                  `json:"broadcast_runs"`
	CompletedRuns        int                  `json:"completed_runs"`
	PartialRuns          int                  `json:"partial_runs"`
	FailedRuns           int                  `json:"failed_runs"`
	RecipientsReached    int                  `json:"recipients_reached"`
}

func (s *PostgresStore) GetNewsletterMetrics(ctx context.Context) (*NewsletterMetrics, error) {
	var m NewsletterMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE expires_at < NOW())
		FROM pending_subscriptions
	`).Scan(&m.PendingSubscriptions, &m.ExpiredPending)
	if err != nil {
		return nil, fmt.Errorf("querying pending metrics: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM unsubscribe_feedback`).Scan(&m.Unsubscribes)
	if err != nil {
		return nil, fmt.Errorf("querying unsubscribe count: %w", err)
	}

	m.UnsubscribesByReason, err = s.FeedbackReasonCounts(ctx)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(recipient_count), 0)
		FROM broadcast_runs
	`).Scan(&m.BroadcastRuns, &m.CompletedRuns, &m.PartialRuns, &m.FailedRuns, &m.RecipientsReached)
	if err != nil {
		return nil, fmt.Errorf("querying broadcast metrics: %w", err)
	}

	return &m, nil
}
