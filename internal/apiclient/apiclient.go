// Package apiclient is the thin HTTP client the CLI uses to talk to a
// running daemon.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adforge/internal/status"
)

const defaultHTTPTimeout = 15 * time.Second

// Client calls the daemon HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the daemon at the given bind address. Bare
// host:port addresses are promoted to http URLs.
func New(address string) *Client {
	address = strings.TrimSpace(address)
	if address != "" && !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &Client{
		baseURL:    strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Status returns the daemon's pipeline overview.
func (c *Client) Status(ctx context.Context) (status.Overview, error) {
	var overview status.Overview
	err := c.get(ctx, "/api/status", &overview)
	return overview, err
}

// Projects lists all projects known to the daemon.
func (c *Client) Projects(ctx context.Context) ([]status.ProjectView, error) {
	var payload struct {
		Projects []status.ProjectView `json:"projects"`
	}
	if err := c.get(ctx, "/api/projects", &payload); err != nil {
		return nil, err
	}
	return payload.Projects, nil
}

// Project fetches a single project view.
func (c *Client) Project(ctx context.Context, id string) (status.ProjectView, error) {
	var view status.ProjectView
	err := c.get(ctx, "/api/projects/"+url.PathEscape(id), &view)
	return view, err
}

// NotificationResult reports the outcome of a test notification.
type NotificationResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotificationResult, error) {
	var result NotificationResult
	err := c.post(ctx, "/api/notifications/test", &result)
	return result, err
}

// Cancel aborts a project's in-flight job.
func (c *Client) Cancel(ctx context.Context, id string) (status.ProjectView, error) {
	var view status.ProjectView
	err := c.post(ctx, "/api/projects/"+url.PathEscape(id)+"/cancel", &view)
	return view, err
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	return c.do(ctx, http.MethodGet, path, target)
}

func (c *Client) post(ctx context.Context, path string, target any) error {
	return c.do(ctx, http.MethodPost, path, target)
}

func (c *Client) do(ctx context.Context, method, path string, target any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon address not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
