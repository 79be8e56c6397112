package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/provider"
	"github.com/google/uuid"
)

const maxFeedbackRunes = 2000

// ServiceConfig holds the tunables of the subscription flow.
type ServiceConfig struct {
	ListIDs       ListIDs
	PendingTTL    time.Duration
	StatsCacheTTL time.Duration
}

// Service owns the double opt-in flow, unsubscribes and list maintenance.
type Service struct {
	pending  PendingStore
	feedback FeedbackStore
	lists    provider.ListProvider
	mailer   provider.Mailer
	content  *Content
	cache    StatsCache
	listIDs  ListIDs

	pendingTTL time.Duration
	statsTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	cfg ServiceConfig,
	pending PendingStore,
	feedback FeedbackStore,
	lists provider.ListProvider,
	mailer provider.Mailer,
	content *Content,
	logger *slog.Logger,
) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	return &Service{
		pending:    pending,
		feedback:   feedback,
		lists:      lists,
		mailer:     mailer,
		content:    content,
		listIDs:    cfg.ListIDs,
		pendingTTL: cfg.PendingTTL,
		statsTTL:   cfg.StatsCacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// WithStatsCache enables caching of GetSubscriberStats.
func (s *Service) WithStatsCache(cache StatsCache) *Service {
	s.cache = cache
	return s
}

type SubscriptionRequest struct {
	Email    string
	Language domain.Language
	Source   string
}

// PendingConfirmation is returned when a signup awaits the opt-in click.
type PendingConfirmation struct {
	Token     string
	ExpiresAt time.Time
}

type Confirmation struct {
	Email    string          `json:"email"`
	Language domain.Language `json:"language"`
}

// RequestSubscription stores a pending signup and emails the confirmation
// link. Any earlier pending record for the same email is replaced.
func (s *Service) RequestSubscription(ctx context.Context, req SubscriptionRequest) (*PendingConfirmation, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !req.Language.Valid() {
		return nil, invalid("language", "must be pl or en")
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = DefaultSource
	}

	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Warn("expired pending sweep failed", "error", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &domain.PendingSubscription{
		ID:        uuid.NewString(),
		Email:     email,
		Language:  req.Language,
		Source:    source,
		Token:     token,
		ExpiresAt: now.Add(s.pendingTTL),
		CreatedAt: now,
	}
	if err := s.pending.ReplacePending(ctx, p); err != nil {
		return nil, fmt.Errorf("storing pending subscription: %w", err)
	}

	msg, err := s.content.Confirmation(token, req.Language)
	if err != nil {
		return nil, err
	}
	err = s.mailer.SendTransactional(ctx, provider.Email{
		Recipients: []provider.Recipient{{Email: email}},
		Subject:    msg.Subject,
		HTML:       msg.HTML,
		Text:       msg.Text,
		Tags:       []string{"newsletter-confirmation", req.Language.String()},
	})
	if err != nil {
		s.logger.Error("confirmation email failed", "email", email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEmailDelivery, err)
	}

	s.logger.Info("subscription requested",
		"pending_id", p.ID,
		"language", req.Language,
		"source", source,
	)
	return &PendingConfirmation{Token: token, ExpiresAt: p.ExpiresAt}, nil
}

// ConfirmSubscription promotes the pending record behind token into its
// language list. Expired records are deleted; provider failures keep the
// record so the link can be retried.
func (s *Service) ConfirmSubscription(ctx context.Context, token string) (*Confirmation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenNotFound
	}

	p, err := s.pending.GetPendingByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}
	if p == nil {
		return nil, ErrTokenNotFound
	}

	if p.Expired(s.now()) {
		if err := s.pending.DeletePending(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("deleting expired pending subscription: %w", err)
		}
		return nil, ErrTokenExpired
	}

	if err := s.Promote(ctx, p.Email, p.Language, p.Source); err != nil {
		return nil, err
	}

	if err := s.pending.DeletePending(ctx, p.ID); err != nil {
		// Promotion is idempotent, so a leftover record only allows a harmless re-confirm.
		s.logger.Error("failed to delete confirmed pending subscription", "pending_id", p.ID, "error", err)
	}
	s.invalidateStats(ctx)

	s.logger.Info("subscription confirmed", "pending_id", p.ID, "language", p.Language)
	return &Confirmation{Email: p.Email, Language: p.Language}, nil
}

// SweepExpired deletes every pending record past its expiry.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.pending.DeleteExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired pending subscriptions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired pending subscriptions removed", "count", n)
	}
	return n, nil
}

// Promote makes email a member of exactly the lang list.
func (s *Service) Promote(ctx context.Context, email string, lang domain.Language, source string) error {
	target := s.listIDs.For(lang)
	other := s.listIDs.For(lang.Other())

	bestEffort(ctx, s.logger, "remove from other language list", func(ctx context.Context) error {
		return s.lists.RemoveContactsFromList(ctx, other, []string{email})
	}, "list_id", other)

	err := s.lists.UpsertContact(ctx, provider.UpsertContact{
		Email: email,
		Attributes: map[string]any{
			"LANGUAGE":      lang.String(),
			"SOURCE":        source,
			"SUBSCRIBED_AT": s.now().UTC().Format(time.RFC3339),
		},
		ListIDs:       []int64{target},
		UnlinkListIDs: []int64{other},
	})
	if err != nil {
		return providerErr(fmt.Sprintf("adding contact to %s list", lang), err)
	}
	return nil
}

// CleanupAndFixSubscriber repairs a subscriber that sits on the wrong list
// or on both lists.
func (s *Service) CleanupAndFixSubscriber(ctx context.Context, email string, lang domain.Language) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if !lang.Valid() {
		return invalid("language", "must be pl or en")
	}
	if err := s.Promote(ctx, email, lang, "cleanup"); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logger.Info("subscriber list membership fixed", "language", lang)
	return nil
}

type UnsubscribeRequest struct {
	Email    string
	Reason   domain.UnsubscribeReason
	Feedback string
	Language domain.Language
}

// UnsubscribeWithFeedback removes the email from both language lists and
// appends a feedback entry.
func (s *Service) UnsubscribeWithFeedback(ctx context.Context, req UnsubscribeRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}
	reason, err := domain.ParseUnsubscribeReason(string(req.Reason))
	if err != nil {
		return invalid("reason", err.Error())
	}
	if !req.Language.Valid() {
		return invalid("language", "must be pl or en")
	}

	var feedback *string
	if text := strings.TrimSpace(req.Feedback); text != "" {
		if utf8.RuneCountInString(text) > maxFeedbackRunes {
			text = string([]rune(text)[:maxFeedbackRunes])
		}
		feedback = &text
	}

	entry := &domain.UnsubscribeFeedback{
		ID:        uuid.NewString(),
		Email:     email,
		Reason:    reason,
		Feedback:  feedback,
		Language:  req.Language,
		CreatedAt: s.now().UTC(),
	}
	if err := s.feedback.InsertUnsubscribeFeedback(ctx, entry); err != nil {
		return fmt.Errorf("recording unsubscribe feedback: %w", err)
	}

	for _, lang := range domain.Languages {
		listID := s.listIDs.For(lang)
		bestEffort(ctx, s.logger, "remove from language list", func(ctx context.Context) error {
			return s.lists.RemoveContactsFromList(ctx, listID, []string{email})
		}, "list_id", listID)
	}
	s.invalidateStats(ctx)

	s.logger.Info("subscriber unsubscribed", "reason", reason, "language", req.Language)
	return nil
}

// GetSubscriberStats counts both language lists. Provider failures yield
// zeros instead of an error.
func (s *Service) GetSubscriberStats(ctx context.Context) domain.SubscriberStats {
	if s.cache != nil {
		cached, err := s.cache.GetCachedStats(ctx)
		if err != nil {
			s.logger.Warn("stats cache read failed", "error", err)
		} else if cached != nil {
			return *cached
		}
	}

	pl, err := s.lists.GetList(ctx, s.listIDs.PL)
	if err != nil {
		s.logger.Warn("failed to read polish list", "error", err)
		return domain.SubscriberStats{}
	}
	en, err := s.lists.GetList(ctx, s.listIDs.EN)
	if err != nil {
		s.logger.Warn("failed to read english list", "error", err)
		return domain.SubscriberStats{}
	}

	stats := domain.SubscriberStats{
		PolishCount:  pl.TotalSubscribers,
		EnglishCount: en.TotalSubscribers,
		TotalCount:   pl.TotalSubscribers + en.TotalSubscribers,
	}
	if s.cache != nil && s.statsTTL > 0 {
		bestEffort(ctx, s.logger, "cache subscriber stats", func(ctx context.Context) error {
			return s.cache.SetCachedStats(ctx, stats, s.statsTTL)
		})
	}
	return stats
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	bestEffort(ctx, s.logger, "invalidate subscriber stats", s.cache.InvalidateStats)
}
