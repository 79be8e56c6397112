package brevo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Priya8975/newsletter-service/internal/provider"
)

func (c *Client) GetList(ctx context.Context, listID int64) (*provider.List, error) {
	var list provider.List
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/contacts/lists/%d", listID), nil, &list); err != nil {
		return nil, fmt.Errorf("getting list %d: %w", listID, err)
	}
	return &list, nil
}

type createListRequest struct {
	Name     string `json:"name"`
	FolderID int64  `json:"folderId"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

// CreateList creates a list in the configured folder and returns its ID.
func (c *Client) CreateList(ctx context.Context, name string) (int64, error) {
	var resp createdResponse
	err := c.do(ctx, http.MethodPost, "/contacts/lists", createListRequest{
		Name:     name,
		FolderID: c.folderID,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("creating list %q: %w", name, err)
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("creating list %q: response carried no id", name)
	}
	return resp.ID, nil
}

func (c *Client) DeleteList(ctx context.Context, listID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/contacts/lists/%d", listID), nil, nil); err != nil {
		return fmt.Errorf("deleting list %d: %w", listID, err)
	}
	return nil
}
