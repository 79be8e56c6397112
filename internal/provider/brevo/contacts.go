package brevo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Priya8975/newsletter-service/internal/provider"
)

type upsertContactRequest struct {
	Email         string         `json:"email"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	ListIDs       []int64        `json:"listIds,omitempty"`
	UnlinkListIDs []int64        `json:"unlinkListIds,omitempty"`
	UpdateEnabled bool           `json:"updateEnabled"`
}

// UpsertContact creates or updates a contact. updateEnabled makes repeated
// calls for the same email idempotent.
func (c *Client) UpsertContact(ctx context.Context, contact provider.UpsertContact) error {
	err := c.do(ctx, http.MethodPost, "/contacts", upsertContactRequest{
		Email:         contact.Email,
		Attributes:    contact.Attributes,
		ListIDs:       contact.ListIDs,
		UnlinkListIDs: contact.UnlinkListIDs,
		UpdateEnabled: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("upserting contact: %w", err)
	}
	return nil
}

type emailsRequest struct {
	Emails []string `json:"emails"`
}

func (c *Client) AddContactsToList(ctx context.Context, listID int64, emails []string) error {
	path := fmt.Sprintf("/contacts/lists/%d/contacts/add", listID)
	if err := c.do(ctx, http.MethodPost, path, emailsRequest{Emails: emails}, nil); err != nil {
		return fmt.Errorf("adding %d contacts to list %d: %w", len(emails), listID, err)
	}
	return nil
}

func (c *Client) RemoveContactsFromList(ctx context.Context, listID int64, emails []string) error {
	path := fmt.Sprintf("/contacts/lists/%d/contacts/remove", listID)
	if err := c.do(ctx, http.MethodPost, path, emailsRequest{Emails: emails}, nil); err != nil {
		return fmt.Errorf("removing %d contacts from list %d: %w", len(emails), listID, err)
	}
	return nil
}

type listContactsResponse struct {
	Contacts []provider.Contact `json:"contacts"`
	Count    int                `json:"count"`
}

// ListContacts returns one page of list members.
func (c *Client) ListContacts(ctx context.Context, listID int64, limit, offset int) ([]provider.Contact, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	path := fmt.Sprintf("/contacts/lists/%d/contacts?%s", listID, q.Encode())

	var resp listContactsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing contacts of list %d: %w", listID, err)
	}
	if resp.Contacts == nil {
		resp.Contacts = []provider.Contact{}
	}
	return resp.Contacts, nil
}
