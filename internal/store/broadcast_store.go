package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

const broadcastColumns = `id, article_id, language, status, audience_size, recipient_count,
	campaign_id, error_message, batches, requested_by, created_at, started_at, finished_at`

// BroadcastOutcome is the final state written when a run ends.
type BroadcastOutcome struct {
	Status         string
	AudienceSize   int
	RecipientCount int
	CampaignID     string
	ErrorMessage   string
	Batches        json.RawMessage
}

func (s *PostgresStore) CreateBroadcastRun(ctx context.Context, run *domain.BroadcastRun) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO broadcast_runs (id, article_id, language, status, requested_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, run.ID, run.ArticleID, run.Language, run.Status, run.RequestedBy).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting broadcast run: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkBroadcastRunning(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE broadcast_runs SET status = $1, started_at = $2 WHERE id = $3
	`, domain.RunRunning, startedAt, id)
	if err != nil {
		return fmt.Errorf("marking broadcast run running: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishBroadcastRun(ctx context.Context, id string, out BroadcastOutcome, finishedAt time.Time) error {
	var campaignID, errMsg *string
	if out.CampaignID != "" {
		campaignID = &out.CampaignID
	}
	if out.ErrorMessage != "" {
		errMsg = &out.ErrorMessage
	}
	var batches []byte
	if len(out.Batches) > 0 {
		batches = out.Batches
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE broadcast_runs
		SET status = $1, audience_size = $2, recipient_count = $3, campaign_id = $4,
		    error_message = $5, batches = $6, finished_at = $7
		WHERE id = $8
	`, out.Status, out.AudienceSize, out.RecipientCount, campaignID, errMsg, batches, finishedAt, id)
	if err != nil {
		return fmt.Errorf("finishing broadcast run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBroadcastRun(ctx context.Context, id string) (*domain.BroadcastRun, error) {
	run, err := scanBroadcastRun(s.pool.QueryRow(ctx,
		`SELECT `+broadcastColumns+` FROM broadcast_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying broadcast run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) ListBroadcastRuns(ctx context.Context, limit int) ([]domain.BroadcastRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+broadcastColumns+` FROM broadcast_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying broadcast runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.BroadcastRun{}
	for rows.Next() {
		run, err := scanBroadcastRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning broadcast run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanBroadcastRun(row pgx.Row) (*domain.BroadcastRun, error) {
	var r domain.BroadcastRun
	var batches []byte
	err := row.Scan(
		&r.ID, &r.ArticleID, &r.Language, &r.Status, &r.AudienceSize, &r.RecipientCount,
		&r.CampaignID, &r.ErrorMessage, &batches, &r.RequestedBy, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(batches) > 0 {
		r.Batches = json.RawMessage(batches)
	}
	return &r, nil
}
