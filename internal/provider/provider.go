package provider

import "context"

// Contact is a mailing-list member as reported by the provider.
type Contact struct {
	Email      string         `json:"email"`
	Attributes map[string]any `json:"attributes,omitempty"`
	ListIDs    []int64        `json:"listIds,omitempty"`
}

type List struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	TotalSubscribers int    `json:"totalSubscribers"`
}

// UpsertContact creates the contact or updates it in place. ListIDs are added,
// UnlinkListIDs are removed in the same call.
type UpsertContact struct {
	Email         string
	Attributes    map[string]any
	ListIDs       []int64
	UnlinkListIDs []int64
}

type Campaign struct {
	Name        string
	Subject     string
	PreviewText string
	HTML        string
	ListIDs     []int64
	Tag         string
}

type Sender struct {
	Name  string
	Email string
}

type Recipient struct {
	Email string
	Name  string
}

// Email is an immediately-sent transactional message. Each recipient receives
// an individual copy.
type Email struct {
	Recipients []Recipient
	Subject    string
	HTML       string
	Text       string
	Tags       []string
}

// ListProvider is the external mailing-list service. Confirmed subscribers only
// exist as list memberships on the provider side.
type ListProvider interface {
	UpsertContact(ctx context.Context, c UpsertContact) error
	AddContactsToList(ctx context.Context, listID int64, emails []string) error
	RemoveContactsFromList(ctx context.Context, listID int64, emails []string) error
	ListContacts(ctx context.Context, listID int64, limit, offset int) ([]Contact, error)
	GetList(ctx context.Context, listID int64) (*List, error)
	CreateList(ctx context.Context, name string) (int64, error)
	DeleteList(ctx context.Context, listID int64) error
	CreateCampaign(ctx context.Context, c Campaign) (int64, error)
	SendCampaignNow(ctx context.Context, campaignID int64) error
}

// Mailer sends transactional email.
type Mailer interface {
	SendTransactional(ctx context.Context, e Email) error
}
