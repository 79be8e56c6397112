package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/newsletter-service/internal/domain"
)

func (s *PostgresStore) InsertUnsubscribeFeedback(ctx context.Context, f *domain.UnsubscribeFeedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO unsubscribe_feedback (id, email, reason, feedback, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.Email, f.Reason, f.Feedback, f.Language, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting unsubscribe feedback: %w", err)
	}
	return nil
}

// ListUnsubscribeFeedback returns the newest entries first, optionally
// filtered by reason.
func (s *PostgresStore) ListUnsubscribeFeedback(ctx context.Context, reason domain.UnsubscribeReason, limit int) ([]domain.UnsubscribeFeedback, error) {
	query := `SELECT id, email, reason, feedback, language, created_at FROM unsubscribe_feedback`
	args := []interface{}{}
	if reason != "" {
		query += ` WHERE reason = $1`
		args = append(args, reason)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying unsubscribe feedback: %w", err)
	}
	defer rows.Close()

	var entries []domain.UnsubscribeFeedback
	for rows.Next() {
		var f domain.UnsubscribeFeedback
		if err := rows.Scan(&f.ID, &f.Email, &f.Reason, &f.Feedback, &f.Language, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning unsubscribe feedback: %w", err)
		}
		entries = append(entries, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unsubscribe feedback: %w", err)
	}

	if entries == nil {
		entries = []domain.UnsubscribeFeedback{}
	}
	return entries, nil
}

func (s *PostgresStore) FeedbackReasonCounts(ctx context.Context) ([]domain.ReasonCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT reason, COUNT(*) FROM unsubscribe_feedback
		GROUP BY reason
		ORDER BY COUNT(*) DESC, reason
	`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback reasons: %w", err)
	}
	defer rows.Close()

	counts := []domain.ReasonCount{}
	for rows.Next() {
		var c domain.ReasonCount
		if err := rows.Scan(&c.Reason, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning feedback reason: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
