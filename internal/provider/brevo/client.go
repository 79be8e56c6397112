package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Priya8975/newsletter-service/internal/provider"
)

const DefaultBaseURL = "https://api.brevo.com/v3"

type Config struct {
	BaseURL       string
	APIKey        string
	Sender        provider.Sender
	FolderID      int64 // folder that temporary batch lists are created in
	Timeout       time.Duration
	RatePerSecond int
}

// Client talks to the Brevo v3 REST API. It implements both
// provider.ListProvider and provider.Mailer.
type Client struct {
	baseURL    string
	apiKey     string
	sender     provider.Sender
	folderID   int64
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var (
	_ provider.ListProvider = (*Client)(nil)
	_ provider.Mailer       = (*Client)(nil)
)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FolderID <= 0 {
		cfg.FolderID = 1
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		sender:   cfg.Sender,
		folderID: cfg.FolderID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// do sends one API request. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		// drain so the keep-alive connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	c.logger.Debug("brevo request",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"response_time_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		// Limit to 4KB, error bodies are short JSON documents
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newAPIError(method, path, resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
