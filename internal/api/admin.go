package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/engine"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
	"github.com/Priya8975/newsletter-service/internal/store"
	ws "github.com/Priya8975/newsletter-service/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ArticleValidator checks an article can be announced before a run is queued.
type ArticleValidator interface {
	Validate(ctx context.Context, articleID string) (*domain.Article, error)
}

// AdminStore is the read side of the admin dashboard plus run creation.
type AdminStore interface {
	CreateBroadcastRun(ctx context.Context, run *domain.BroadcastRun) error
	FinishBroadcastRun(ctx context.Context, id string, out store.BroadcastOutcome, finishedAt time.Time) error
	GetBroadcastRun(ctx context.Context, id string) (*domain.BroadcastRun, error)
	ListBroadcastRuns(ctx context.Context, limit int) ([]domain.BroadcastRun, error)
	ListUnsubscribeFeedback(ctx context.Context, reason domain.UnsubscribeReason, limit int) ([]domain.UnsubscribeFeedback, error)
	FeedbackReasonCounts(ctx context.Context) ([]domain.ReasonCount, error)
	GetNewsletterMetrics(ctx context.Context) (*store.NewsletterMetrics, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job engine.BroadcastJob) error
	Depth(ctx context.Context) (int64, error)
}

type JobRunner interface {
	Run(ctx context.Context, job engine.BroadcastJob) (*newsletter.BroadcastResult, error)
}

// EventHub is the dashboard feed.
type EventHub interface {
	Publish(event ws.BroadcastEvent)
	ClientCount() int
}

type GuardInspector interface {
	GetState(ctx context.Context, name string) engine.CircuitBreakerState
}

type AdminHandler struct {
	subs     Subscriptions
	articles ArticleValidator
	store    AdminStore
	queue    JobQueue
	runner   JobRunner
	hub      EventHub
	guard    GuardInspector
	logger   *slog.Logger
}

func NewAdminHandler(subs Subscriptions, articles ArticleValidator, s AdminStore, queue JobQueue, runner JobRunner, hub EventHub, guard GuardInspector, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		subs:     subs,
		articles: articles,
		store:    s,
		queue:    queue,
		runner:   runner,
		hub:      hub,
		guard:    guard,
		logger:   logger,
	}
}

type sendRequest struct {
	ArticleID string `json:"article_id" validate:"required,max=128"`
	Language  string `json:"language" validate:"required,oneof=pl en"`
	Wait      bool   `json:"wait"`
}

type sendResponse struct {
	RunID  string                      `json:"run_id"`
	Status string                      `json:"status"`
	Result *newsletter.BroadcastResult `json:"result,omitempty"`
}

type cleanupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Language string `json:"language" validate:"required,oneof=pl en"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.subs.GetSubscriberStats(r.Context()))
}

// Send queues a broadcast, or runs it inline when wait is set.
func (h *AdminHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	lang := domain.Language(req.Language)

	article, err := h.articles.Validate(r.Context(), req.ArticleID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	run := &domain.BroadcastRun{
		ID:          uuid.NewString(),
		ArticleID:   article.ID,
		Language:    lang,
		Status:      domain.RunQueued,
		RequestedBy: "admin",
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateBroadcastRun(r.Context(), run); err != nil {
		h.logger.Error("failed to create broadcast run", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create broadcast run")
		return
	}

	job := engine.BroadcastJob{
		RunID:       run.ID,
		ArticleID:   run.ArticleID,
		Language:    lang,
		RequestedBy: run.RequestedBy,
		QueuedAt:    run.CreatedAt,
	}

	if req.Wait {
		// a dropped admin connection must not abort the send half-way
		result, err := h.runner.Run(context.WithoutCancel(r.Context()), job)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		status := domain.RunCompleted
		if result.PartialFailure {
			status = domain.RunPartial
		}
		respondJSON(w, http.StatusOK, sendResponse{RunID: run.ID, Status: status, Result: result})
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to queue broadcast", "run_id", run.ID, "error", err)
		out := store.BroadcastOutcome{Status: domain.RunFailed, ErrorMessage: "queueing failed: " + err.Error()}
		if ferr := h.store.FinishBroadcastRun(context.WithoutCancel(r.Context()), run.ID, out, time.Now().UTC()); ferr != nil {
			h.logger.Error("failed to mark unqueued run failed", "run_id", run.ID, "error", ferr)
		}
		respondError(w, http.StatusInternalServerError, "failed to queue broadcast")
		return
	}
	h.hub.Publish(ws.BroadcastEvent{
		Type:      ws.EventQueued,
		RunID:     run.ID,
		ArticleID: run.ArticleID,
		Language:  lang.String(),
	})

	respondJSON(w, http.StatusAccepted, sendResponse{RunID: run.ID, Status: domain.RunQueued})
}

func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	if err := h.subs.CleanupAndFixSubscriber(r.Context(), req.Email, domain.Language(req.Language)); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "fixed", "language": req.Language})
}

func (h *AdminHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var reason domain.UnsubscribeReason
	if s := r.URL.Query().Get("reason"); s != "" {
		parsed, err := domain.ParseUnsubscribeReason(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		reason = parsed
	}
	limit := queryLimit(r, 50, 500)

	entries, err := h.store.ListUnsubscribeFeedback(r.Context(), reason, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}
	counts, err := h.store.FeedbackReasonCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count feedback")
		return
	}

	type feedbackResponse struct {
		Entries []domain.UnsubscribeFeedback `json:"entries"`
		Reasons []domain.ReasonCount         `json:"reasons"`
	}
	if entries == nil {
		entries = []domain.UnsubscribeFeedback{}
	}
	if counts == nil {
		counts = []domain.ReasonCount{}
	}
	respondJSON(w, http.StatusOK, feedbackResponse{Entries: entries, Reasons: counts})
}

func (h *AdminHandler) ListBroadcasts(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListBroadcastRuns(r.Context(), queryLimit(r, 20, 200))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list broadcasts")
		return
	}
	if runs == nil {
		runs = []domain.BroadcastRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (h *AdminHandler) GetBroadcast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetBroadcastRun(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get broadcast")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "broadcast not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// Metrics returns aggregated newsletter metrics for the dashboard.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetNewsletterMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	queueDepth, err := h.queue.Depth(r.Context())
	if err != nil {
		queueDepth = 0
	}

	type metricsResponse struct {
		store.NewsletterMetrics
		Subscribers      domain.SubscriberStats     `json:"subscribers"`
		QueueDepth       int64                      `json:"queue_depth"`
		WebSocketClients int                        `json:"websocket_clients"`
		CampaignCircuit  engine.CircuitBreakerState `json:"campaign_circuit"`
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		NewsletterMetrics: *metrics,
		Subscribers:       h.subs.GetSubscriberStats(r.Context()),
		QueueDepth:        queueDepth,
		WebSocketClients:  h.hub.ClientCount(),
		CampaignCircuit:   h.guard.GetState(r.Context(), newsletter.CampaignGuardKey),
	})
}
