package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	var a domain.Article
	err := s.pool.QueryRow(ctx, `
		SELECT id, title_pl, title_en, excerpt_pl, excerpt_en, slug_pl, slug_en,
		       cover_image, is_published, published_at
		FROM articles WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Title.PL, &a.Title.EN, &a.Excerpt.PL, &a.Excerpt.EN, &a.Slug.PL, &a.Slug.EN,
		&a.CoverImage, &a.IsPublished, &a.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying article: %w", err)
	}
	return &a, nil
}
