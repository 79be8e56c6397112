package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/newsletter"
)

// Subscriptions is the subscriber-facing part of newsletter.Service.
type Subscriptions interface {
	RequestSubscription(ctx context.Context, req newsletter.SubscriptionRequest) (*newsletter.PendingConfirmation, error)
	ConfirmSubscription(ctx context.Context, token string) (*newsletter.Confirmation, error)
	UnsubscribeWithFeedback(ctx context.Context, req newsletter.UnsubscribeRequest) error
	CleanupAndFixSubscriber(ctx context.Context, email string, lang domain.Language) error
	GetSubscriberStats(ctx context.Context) domain.SubscriberStats
}

type NewsletterHandler struct {
	subs   Subscriptions
	logger *slog.Logger
}

func NewNewsletterHandler(subs Subscriptions, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{subs: subs, logger: logger}
}

type subscribeRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Language string `json:"language" validate:"required,oneof=pl en"`
	Source   string `json:"source" validate:"omitempty,max=64"`
	Consent  bool   `json:"consent" validate:"required"`
}

type unsubscribeRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Reason   string `json:"reason" validate:"required,oneof=too_frequent not_relevant never_signed_up spam content_quality other"`
	Feedback string `json:"feedback" validate:"omitempty,max=10000"`
	Language string `json:"language" validate:"required,oneof=pl en"`
}

type publicResponse struct {
	Message   string          `json:"message"`
	Email     string          `json:"email,omitempty"`
	Language  domain.Language `json:"language,omitempty"`
	ExpiresAt string          `json:"expires_at,omitempty"`
}

func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	var req subscribeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondPublicError(w, lang, err)
		return
	}
	lang = domain.Language(req.Language)

	pending, err := h.subs.RequestSubscription(r.Context(), newsletter.SubscriptionRequest{
		Email:    req.Email,
		Language: lang,
		Source:   req.Source,
	})
	if err != nil {
		h.respondPublicError(w, lang, err)
		return
	}

	respondJSON(w, http.StatusAccepted, publicResponse{
		Message:   message(msgSubscribeAccepted, lang),
		Language:  lang,
		ExpiresAt: pending.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *NewsletterHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)
	token := r.URL.Query().Get("token")

	conf, err := h.subs.ConfirmSubscription(r.Context(), token)
	if err != nil {
		h.respondPublicError(w, lang, err)
		return
	}

	respondJSON(w, http.StatusOK, publicResponse{
		Message:  message(msgConfirmed, conf.Language),
		Email:    conf.Email,
		Language: conf.Language,
	})
}

func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)

	var req unsubscribeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.respondPublicError(w, lang, err)
		return
	}
	lang = domain.Language(req.Language)

	err := h.subs.UnsubscribeWithFeedback(r.Context(), newsletter.UnsubscribeRequest{
		Email:    req.Email,
		Reason:   domain.UnsubscribeReason(req.Reason),
		Feedback: req.Feedback,
		Language: lang,
	})
	if err != nil {
		h.respondPublicError(w, lang, err)
		return
	}

	respondJSON(w, http.StatusOK, publicResponse{Message: message(msgUnsubscribed, lang)})
}

// respondPublicError localizes err for site visitors.
func (h *NewsletterHandler) respondPublicError(w http.ResponseWriter, lang domain.Language, err error) {
	status := errorStatus(err)
	resp := errorResponse{}

	switch status {
	case http.StatusBadRequest:
		resp.Error = message(msgInvalidInput, lang)
		var verr *newsletter.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
		}
	case http.StatusNotFound:
		resp.Error = message(msgTokenNotFound, lang)
	case http.StatusGone:
		resp.Error = message(msgTokenExpired, lang)
		resp.Resubscribe = true
	case http.StatusBadGateway:
		resp.Error = message(msgProviderError, lang)
		if errors.Is(err, newsletter.ErrEmailDelivery) {
			resp.Error = message(msgEmailFailed, lang)
		}
	default:
		h.logger.Error("newsletter request failed", "error", err)
		resp.Error = message(msgInternal, lang)
	}

	respondJSON(w, status, resp)
}
