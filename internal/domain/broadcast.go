package domain

import (
	"encoding/json"
	"time"
)

// Broadcast run states.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// BroadcastRun is the audit record of one newsletter broadcast.
type BroadcastRun struct {
	ID             string          `json:"id"`
	ArticleID      string          `json:"article_id"`
	Language       Language        `json:"language"`
	Status         string          `json:"status"`
	AudienceSize   int             `json:"audience_size"`
	RecipientCount int             `json:"recipient_count"`
	CampaignID     *string         `json:"campaign_id,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	Batches        json.RawMessage `json:"batches,omitempty"`
	RequestedBy    string          `json:"requested_by"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// SubscriberStats counts confirmed subscribers per language list.
type SubscriberStats struct {
	PolishCount  int `json:"polish_count"`
	EnglishCount int `json:"english_count"`
	TotalCount   int `json:"total_count"`
}
