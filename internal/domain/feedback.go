package domain

import (
	"fmt"
	"time"
)

type UnsubscribeReason string

const (
	ReasonTooFrequent    UnsubscribeReason = "too_frequent"
	ReasonNotRelevant    UnsubscribeReason = "not_relevant"
	ReasonNeverSignedUp  UnsubscribeReason = "never_signed_up"
	ReasonSpam           UnsubscribeReason = "spam"
	ReasonContentQuality UnsubscribeReason = "content_quality"
	ReasonOther          UnsubscribeReason = "other"
)

var unsubscribeReasons = map[UnsubscribeReason]struct{}{
	ReasonTooFrequent:    {},
	ReasonNotRelevant:    {},
	ReasonNeverSignedUp:  {},
	ReasonSpam:           {},
	ReasonContentQuality: {},
	ReasonOther:          {},
}

// ParseUnsubscribeReason validates a reason against the fixed set.
func ParseUnsubscribeReason(s string) (UnsubscribeReason, error) {
	r := UnsubscribeReason(s)
	if _, ok := unsubscribeReasons[r]; !ok {
		return "", fmt.Errorf("unknown unsubscribe reason %q", s)
	}
	return r, nil
}

// UnsubscribeFeedback is an append-only log entry written on every unsubscribe.
type UnsubscribeFeedback struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Reason    UnsubscribeReason `json:"reason"`
	Feedback  *string           `json:"feedback,omitempty"`
	Language  Language          `json:"language"`
	CreatedAt time.Time         `json:"created_at"`
}

type ReasonCount struct {
	Reason UnsubscribeReason `json:"reason"`
	Count  int               `json:"count"`
}
