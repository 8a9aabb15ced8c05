package listmonk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/httpretry"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// ErrListManagerRequestFailed wraps every failed call to listmonk.
var ErrListManagerRequestFailed = errors.New("listmonk request failed")

// APIError is a non-2xx answer from listmonk.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("listmonk %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrListManagerRequestFailed.
func (e *APIError) Unwrap() error { return ErrListManagerRequestFailed }

// Client is a listmonk API client
type Client struct {
	baseURL    string
	username   string
	password   string
	source     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a listmonk client. Calls are retried on 429/5xx per
// cfg.Retries(); the provider's webhook redelivery covers the rest.
func NewClient(cfg config.ListmonkConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.APIEndpoint, "/"),
		username: cfg.Username,
		password: cfg.Password,
		source:   cfg.BounceSource,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, cfg.Retries()),
	}
}

// RecordBounce posts a bounce to listmonk. An empty Source is filled with
// the configured bounce source.
func (c *Client) RecordBounce(ctx context.Context, bounce Bounce) error {
	if bounce.Source == "" {
		bounce.Source = c.source
	}
	return c.do(ctx, "record bounce", http.MethodPost, "/webhooks/bounce", bounce)
}

// BlocklistByEmail blocklists every subscriber whose email matches addr.
func (c *Client) BlocklistByEmail(ctx context.Context, addr mailersend.Address) error {
	req := QueryBlocklistRequest{Query: BlocklistQuery(addr.Email)}
	return c.do(ctx, "blocklist", http.MethodPut, "/api/subscribers/query/blocklist", req)
}

// BlocklistQuery builds the subscriber SQL expression for an email.
// Single quotes are doubled so the address stays a string literal.
func BlocklistQuery(email string) string {
	return fmt.Sprintf("subscribers.email LIKE '%s'", strings.ReplaceAll(email, "'", "''"))
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrListManagerRequestFailed, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating %s request: %v", ErrListManagerRequestFailed, op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("listmonk: sending request", "op", op, "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrListManagerRequestFailed, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		logger.Error("listmonk: request failed", "op", op, "status", resp.StatusCode, "body", apiErr.Body)
		return apiErr
	}

	io.Copy(io.Discard, resp.Body)
	logger.Debug("listmonk: request successful", "op", op)
	return nil
}
