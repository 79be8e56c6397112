package brevo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Priya8975/newsletter-service/internal/provider"
)

type senderJSON struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type campaignRecipients struct {
	ListIDs []int64 `json:"listIds"`
}

type createCampaignRequest struct {
	Name        string             `json:"name"`
	Subject     string             `json:"subject"`
	PreviewText string             `json:"previewText,omitempty"`
	Sender      senderJSON         `json:"sender"`
	HTMLContent string             `json:"htmlContent"`
	Recipients  campaignRecipients `json:"recipients"`
	Tag         string             `json:"tag,omitempty"`
}

// CreateCampaign creates a draft email campaign targeted at lists.
func (c *Client) CreateCampaign(ctx context.Context, campaign provider.Campaign) (int64, error) {
	var resp createdResponse
	err := c.do(ctx, http.MethodPost, "/emailCampaigns", createCampaignRequest{
		Name:        campaign.Name,
		Subject:     campaign.Subject,
		PreviewText: campaign.PreviewText,
		Sender:      senderJSON{Name: c.sender.Name, Email: c.sender.Email},
		HTMLContent: campaign.HTML,
		Recipients:  campaignRecipients{ListIDs: campaign.ListIDs},
		Tag:         campaign.Tag,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("creating campaign %q: %w", campaign.Name, err)
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("creating campaign %q: response carried no id", campaign.Name)
	}
	return resp.ID, nil
}

func (c *Client) SendCampaignNow(ctx context.Context, campaignID int64) error {
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/emailCampaigns/%d/sendNow", campaignID), nil, nil); err != nil {
		return fmt.Errorf("sending campaign %d: %w", campaignID, err)
	}
	return nil
}
