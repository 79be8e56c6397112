package brevo

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Priya8975/newsletter-service/internal/provider"
)

type recipientJSON struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type messageVersion struct {
	To []recipientJSON `json:"to"`
}

type sendEmailRequest struct {
	Sender          senderJSON       `json:"sender"`
	To              []recipientJSON  `json:"to,omitempty"`
	MessageVersions []messageVersion `json:"messageVersions,omitempty"`
	Subject         string           `json:"subject"`
	HTMLContent     string           `json:"htmlContent"`
	TextContent     string           `json:"textContent,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
}

// SendTransactional sends e immediately. With several recipients every one of
// them gets a separate message version so addresses are never disclosed.
func (c *Client) SendTransactional(ctx context.Context, e provider.Email) error {
	if len(e.Recipients) == 0 {
		return errors.New("sending transactional email: no recipients")
	}

	req := sendEmailRequest{
		Sender:      senderJSON{Name: c.sender.Name, Email: c.sender.Email},
		Subject:     e.Subject,
		HTMLContent: e.HTML,
		TextContent: e.Text,
		Tags:        e.Tags,
	}
	if len(e.Recipients) == 1 {
		req.To = []recipientJSON{{Email: e.Recipients[0].Email, Name: e.Recipients[0].Name}}
	} else {
		req.MessageVersions = make([]messageVersion, 0, len(e.Recipients))
		for _, r := range e.Recipients {
			req.MessageVersions = append(req.MessageVersions, messageVersion{
				To: []recipientJSON{{Email: r.Email, Name: r.Name}},
			})
		}
	}

	if err := c.do(ctx, http.MethodPost, "/smtp/email", req, nil); err != nil {
		return fmt.Errorf("sending transactional email to %d recipients: %w", len(e.Recipients), err)
	}
	return nil
}
