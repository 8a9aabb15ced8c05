package mailersend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/pkg/httpretry"
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 2048

// Client is a MailerSend API client
type Client struct {
	baseURL    string
	apiToken   string
	httpClient httpretry.HTTPDoer
}

// SendResult is the provider's answer to one bulk request. A transport
// failure is reported as an error instead.
type SendResult struct {
	StatusCode  int
	Status      string
	Message     string
	BulkEmailID string
	Count       int
}

// Success reports a 2xx answer.
func (r *SendResult) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a new MailerSend API client. Bulk requests are not
// retried: a failed chunk is reported once and dropped.
func NewClient(cfg config.MailerSendConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIEndpoint, "/"),
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// SendBatch posts the emails as one bulk-email request.
func (c *Client) SendBatch(ctx context.Context, emails []Email) (*SendResult, error) {
	payload, err := json.Marshal(emails)
	if err != nil {
		return nil, fmt.Errorf("encoding bulk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bulk-email", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	result := &SendResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Count:      len(emails),
	}

	var decoded BulkResponse
	if json.Unmarshal(body, &decoded) == nil {
		result.Message = decoded.Message
		result.BulkEmailID = decoded.BulkEmailID
	}
	if !result.Success() && result.Message == "" {
		result.Message = truncate(strings.TrimSpace(string(body)), maxErrorBody)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
