package domain

import "time"

// PendingSubscription is an unconfirmed signup waiting for the double opt-in click.
type PendingSubscription struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Language  Language  `json:"language"`
	Source    string    `json:"source"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the confirmation window closed before now.
func (p *PendingSubscription) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}
