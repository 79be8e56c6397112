package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ReplacePending deletes any pending record for the same email and inserts
// p in one transaction, so an email never has two live tokens.
func (s *PostgresStore) ReplacePending(ctx context.Context, p *domain.PendingSubscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pending_subscriptions WHERE email = $1`, p.Email); err != nil {
		return fmt.Errorf("deleting previous pending subscription: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pending_subscriptions (id, email, language, source, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Email, p.Language, p.Source, p.Token, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting pending subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPendingByToken(ctx context.Context, token string) (*domain.PendingSubscription, error) {
	var p domain.PendingSubscription
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, language, source, token, expires_at, created_at
		FROM pending_subscriptions WHERE token = $1
	`, token).Scan(&p.ID, &p.Email, &p.Language, &p.Source, &p.Token, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying pending subscription: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting pending subscription: %w", err)
	}
	return nil
}

// DeleteExpiredPending removes records whose expiry is before now.
func (s *PostgresStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_subscriptions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired pending subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pending_subscriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending subscriptions: %w", err)
	}
	return n, nil
}
