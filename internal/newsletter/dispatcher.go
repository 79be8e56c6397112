package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/provider"
	"github.com/google/uuid"
)

// CampaignGuardKey is the circuit breaker key protecting campaign creation.
const CampaignGuardKey = "campaigns"

var errCampaignsSuspended = errors.New("campaign sends suspended by circuit breaker")

// Batch modes.
const (
	BatchCampaign = "campaign"
	BatchFallback = "fallback"
	BatchFailed   = "failed"
	BatchSkipped  = "skipped"
)

// BroadcastResult reports one SendNewsletter call. RecipientCount sums the
// batches that were actually delivered, so it can be lower than AudienceSize.
type BroadcastResult struct {
	Success        bool          `json:"success"`
	RecipientCount int           `json:"recipient_count"`
	CampaignID     string        `json:"campaign_id,omitempty"`
	AudienceSize   int           `json:"audience_size"`
	PartialFailure bool          `json:"partial_failure"`
	Batches        []BatchResult `json:"batches,omitempty"`
}

type BatchResult struct {
	Index      int    `json:"index"`
	Size       int    `json:"size"`
	Sent       int    `json:"sent"`
	Mode       string `json:"mode"`
	CampaignID string `json:"campaign_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// broadcastJob lives for one dispatch call. The audience is fixed when the
// job is built and never re-read mid-flight.
type broadcastJob struct {
	id       string
	article  domain.ArticleView
	language domain.Language
	message  *Message
	audience []provider.Recipient
}

type DispatcherConfig struct {
	ListIDs       ListIDs
	BatchDelay    time.Duration
	FallbackDelay time.Duration
}

// Dispatcher sends article announcements to one language list.
type Dispatcher struct {
	articles ArticleStore
	lists    provider.ListProvider
	mailer   provider.Mailer
	content  *Content
	pacer    Pacer
	guard    CampaignGuard
	progress ProgressReporter
	listIDs  ListIDs

	batchDelay    time.Duration
	fallbackDelay time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewDispatcher(
	cfg DispatcherConfig,
	articles ArticleStore,
	lists provider.ListProvider,
	mailer provider.Mailer,
	content *Content,
	pacer Pacer,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	if pacer == nil {
		pacer = SleepPacer{}
	}
	return &Dispatcher{
		articles:      articles,
		lists:         lists,
		mailer:        mailer,
		content:       content,
		pacer:         pacer,
		listIDs:       cfg.ListIDs,
		batchDelay:    cfg.BatchDelay,
		fallbackDelay: cfg.FallbackDelay,
		logger:        logger,
		now:           time.Now,
	}
}

func (d *Dispatcher) WithCampaignGuard(g CampaignGuard) *Dispatcher {
	d.guard = g
	return d
}

func (d *Dispatcher) WithProgress(p ProgressReporter) *Dispatcher {
	d.progress = p
	return d
}

// Validate loads the article and checks it can be announced. It never
// touches the mailing-list provider.
func (d *Dispatcher) Validate(ctx context.Context, articleID string) (*domain.Article, error) {
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return nil, invalid("article_id", "is required")
	}
	article, err := d.articles.GetArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("loading article: %w", err)
	}
	if article == nil {
		return nil, ErrArticleNotFound
	}
	if !article.IsPublished {
		return nil, ErrArticleNotPublished
	}
	return article, nil
}

// SendNewsletter announces an article to every subscriber of lang. Campaign
// failures fall back to transactional email and failed batches are skipped,
// so a nil error can still come with PartialFailure set.
func (d *Dispatcher) SendNewsletter(ctx context.Context, articleID string, lang domain.Language) (*BroadcastResult, error) {
	if !lang.Valid() {
		return nil, invalid("language", "must be pl or en")
	}
	article, err := d.Validate(ctx, articleID)
	if err != nil {
		return nil, err
	}

	view := article.View(lang)
	msg, err := d.content.Newsletter(view, lang)
	if err != nil {
		return nil, err
	}

	audience, err := d.fetchAudience(ctx, d.listIDs.For(lang))
	if err != nil {
		return nil, providerErr("fetching audience", err)
	}

	job := &broadcastJob{
		id:       uuid.NewString(),
		article:  view,
		language: lang,
		message:  msg,
		audience: audience,
	}
	logger := d.logger.With("article_id", article.ID, "language", lang, "job_id", job.id)

	result := &BroadcastResult{Success: true, AudienceSize: len(audience)}
	if len(audience) == 0 {
		logger.Info("newsletter audience is empty")
		return result, nil
	}

	d.report(job, Progress{Stage: StageStarted, Recipients: len(audience)})
	logger.Info("newsletter broadcast started", "recipients", len(audience))

	if len(audience) <= CampaignRecipientLimit {
		if err := d.sendSingle(ctx, job, result, logger); err != nil {
			return nil, err
		}
	} else {
		d.sendBatched(ctx, job, result, logger)
	}

	d.report(job, Progress{
		Stage:      StageCompleted,
		Recipients: len(audience),
		Sent:       result.RecipientCount,
		CampaignID: result.CampaignID,
	})
	logger.Info("newsletter broadcast finished",
		"recipients", result.RecipientCount,
		"campaign_id", result.CampaignID,
		"partial_failure", result.PartialFailure,
	)
	return result, nil
}

func (d *Dispatcher) sendSingle(ctx context.Context, job *broadcastJob, result *BroadcastResult, logger *slog.Logger) error {
	n := len(job.audience)
	listID := d.listIDs.For(job.language)

	campaignID, err := d.sendCampaign(ctx, job, listID, campaignName(job, 0, 1))
	if err == nil {
		id := strconv.FormatInt(campaignID, 10)
		result.RecipientCount = n
		result.CampaignID = id
		result.Batches = []BatchResult{{Index: 1, Size: n, Sent: n, Mode: BatchCampaign, CampaignID: id}}
		return nil
	}

	logger.Warn("campaign send failed, using transactional fallback", "error", err)
	sent, ferr := d.sendTransactional(ctx, job, job.audience, logger)
	if ferr != nil {
		return providerErr("campaign and transactional fallback failed", errors.Join(err, ferr))
	}
	result.RecipientCount = sent
	result.CampaignID = CampaignIDFallback
	result.PartialFailure = sent < n
	result.Batches = []BatchResult{{Index: 1, Size: n, Sent: sent, Mode: BatchFallback, CampaignID: CampaignIDFallback}}
	return nil
}

func (d *Dispatcher) sendBatched(ctx context.Context, job *broadcastJob, result *BroadcastResult, logger *slog.Logger) {
	batches := chunk(job.audience, CampaignRecipientLimit)
	result.CampaignID = CampaignIDBatched

	for i, batch := range batches {
		br := d.sendBatch(ctx, job, i, len(batches), batch, logger)
		result.Batches = append(result.Batches, br)
		result.RecipientCount += br.Sent
		if br.Sent < br.Size {
			result.PartialFailure = true
		}

		if i == len(batches)-1 {
			break
		}
		d.report(job, Progress{Stage: StageWaiting, Batch: i + 1, Batches: len(batches), Sent: result.RecipientCount})
		if err := d.pacer.Pause(ctx, d.batchDelay); err != nil {
			logger.Error("broadcast interrupted between batches", "batch", i+1, "error", err)
			for j := i + 1; j < len(batches); j++ {
				result.Batches = append(result.Batches, BatchResult{
					Index: j + 1,
					Size:  len(batches[j]),
					Mode:  BatchSkipped,
					Error: err.Error(),
				})
			}
			result.PartialFailure = true
			return
		}
	}
}

// sendBatch delivers one batch through a throwaway list and campaign.
func (d *Dispatcher) sendBatch(ctx context.Context, job *broadcastJob, i, total int, batch []provider.Recipient, logger *slog.Logger) BatchResult {
	br := BatchResult{Index: i + 1, Size: len(batch)}
	logger = logger.With("batch", i+1, "batches", total)

	fail := func(err error) BatchResult {
		logger.Error("newsletter batch skipped", "error", err)
		br.Mode = BatchFailed
		br.Error = err.Error()
		d.report(job, Progress{Stage: StageBatchFail, Batch: br.Index, Batches: total, Error: br.Error})
		return br
	}

	listID, err := d.lists.CreateList(ctx, tempListName(job, i, total))
	if err != nil {
		return fail(fmt.Errorf("creating temporary list: %w", err))
	}
	// cleanup must outlive a cancelled broadcast
	defer bestEffort(context.WithoutCancel(ctx), d.logger, "delete temporary list", func(ctx context.Context) error {
		return d.lists.DeleteList(ctx, listID)
	}, "list_id", listID)

	emails := make([]string, len(batch))
	for k, r := range batch {
		emails[k] = r.Email
	}
	for _, part := range chunk(emails, ListAddChunkSize) {
		if err := d.lists.AddContactsToList(ctx, listID, part); err != nil {
			return fail(fmt.Errorf("adding contacts to temporary list: %w", err))
		}
	}

	campaignID, err := d.sendCampaign(ctx, job, listID, campaignName(job, i, total))
	if err == nil {
		br.Mode = BatchCampaign
		br.Sent = len(batch)
		br.CampaignID = strconv.FormatInt(campaignID, 10)
	} else {
		logger.Warn("batch campaign failed, using transactional fallback", "error", err)
		sent, ferr := d.sendTransactional(ctx, job, batch, logger)
		if ferr != nil {
			return fail(fmt.Errorf("campaign failed and fallback failed: %w", errors.Join(err, ferr)))
		}
		br.Mode = BatchFallback
		br.Sent = sent
		br.CampaignID = CampaignIDFallback
	}

	d.report(job, Progress{Stage: StageBatchDone, Batch: br.Index, Batches: total, Sent: br.Sent, CampaignID: br.CampaignID})
	logger.Info("newsletter batch sent", "recipients", br.Sent, "mode", br.Mode)
	return br
}

func (d *Dispatcher) sendCampaign(ctx context.Context, job *broadcastJob, listID int64, name string) (int64, error) {
	if d.guard != nil {
		if state, ok := d.guard.AllowRequest(ctx, CampaignGuardKey); !ok {
			return 0, fmt.Errorf("%w (state %s)", errCampaignsSuspended, state)
		}
	}

	id, err := d.lists.CreateCampaign(ctx, provider.Campaign{
		Name:        name,
		Subject:     job.message.Subject,
		PreviewText: job.message.PreviewText,
		HTML:        job.message.HTML,
		ListIDs:     []int64{listID},
		Tag:         "newsletter",
	})
	if err == nil {
		err = d.lists.SendCampaignNow(ctx, id)
	}
	if err != nil {
		if d.guard != nil {
			d.guard.RecordFailure(ctx, CampaignGuardKey)
		}
		return 0, err
	}
	if d.guard != nil {
		d.guard.RecordSuccess(ctx, CampaignGuardKey)
	}
	return id, nil
}

// sendTransactional mails the message directly in small chunks. It returns
// an error only when nothing could be sent.
func (d *Dispatcher) sendTransactional(ctx context.Context, job *broadcastJob, recipients []provider.Recipient, logger *slog.Logger) (int, error) {
	chunks := chunk(recipients, FallbackChunkSize)
	sent := 0
	var lastErr error

	for i, part := range chunks {
		err := d.mailer.SendTransactional(ctx, provider.Email{
			Recipients: part,
			Subject:    job.message.Subject,
			HTML:       job.message.HTML,
			Text:       job.message.Text,
			Tags:       []string{"newsletter", "article-" + job.article.ID, job.language.String()},
		})
		if err != nil {
			logger.Error("transactional chunk failed", "chunk", i+1, "recipients", len(part), "error", err)
			lastErr = err
		} else {
			sent += len(part)
		}

		if i < len(chunks)-1 {
			if err := d.pacer.Pause(ctx, d.fallbackDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	if sent == 0 && lastErr != nil {
		return 0, lastErr
	}
	return sent, nil
}

func (d *Dispatcher) fetchAudience(ctx context.Context, listID int64) ([]provider.Recipient, error) {
	var audience []provider.Recipient
	for offset := 0; ; offset += AudiencePageSize {
		page, err := d.lists.ListContacts(ctx, listID, AudiencePageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			if c.Email != "" {
				audience = append(audience, provider.Recipient{Email: c.Email})
			}
		}
		if len(page) < AudiencePageSize {
			return audience, nil
		}
	}
}

func (d *Dispatcher) report(job *broadcastJob, p Progress) {
	if d.progress == nil {
		return
	}
	p.ArticleID = job.article.ID
	p.Language = job.language
	p.Timestamp = d.now().UTC()
	d.progress.ReportProgress(p)
}

func campaignName(job *broadcastJob, i, total int) string {
	name := fmt.Sprintf("Newsletter %s [%s]", job.article.Slug, job.language)
	if total > 1 {
		name += fmt.Sprintf(" batch %d/%d", i+1, total)
	}
	return name
}

func tempListName(job *broadcastJob, i, total int) string {
	return fmt.Sprintf("tmp-newsletter-%s-%s-%d-of-%d", job.language, job.id[:8], i+1, total)
}
