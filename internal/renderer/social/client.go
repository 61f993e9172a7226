// Package social talks to the social publish service that pushes the finished
// video to an Instagram business account. Publishing is asynchronous on the
// platform side, so it follows the same submit/poll contract as the other
// renderers.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adforge/internal/config"
	"adforge/internal/renderer"
)

const defaultHTTPTimeout = 30 * time.Second

// Client wraps the social publish HTTP API.
type Client struct {
	apiKey      string
	baseURL     string
	accountID   string
	accessToken string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// New constructs a publish client from the renderer endpoint and the account
// credentials.
func New(cfg config.Renderer, account config.Publish, opts ...Option) *Client {
	client := &Client{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		accountID:   strings.TrimSpace(account.AccountID),
		accessToken: strings.TrimSpace(account.AccessToken),
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

func (c *Client) Kind() renderer.Kind {
	return renderer.KindPublish
}

type submitRequest struct {
	ProjectID string `json:"project_id"`
	AccountID string `json:"account_id"`
	VideoURL  string `json:"video_url"`
	Caption   string `json:"caption,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

type jobResponse struct {
	Status    string `json:"status"`
	PostID    string `json:"post_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Submit publishes the finished video. Missing account credentials are a
// local validation failure so the operator sees a config problem, not a
// vendor one.
func (c *Client) Submit(ctx context.Context, req renderer.Request) (string, error) {
	if c.baseURL == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", "base url not configured", nil)
	}
	if req.VideoPath == "" {
		return "", renderer.Wrap(renderer.ErrValidation, renderer.KindPublish, "submit", "video artifact required", nil)
	}
	if c.accountID == "" || c.accessToken == "" {
		return "", renderer.Wrap(renderer.ErrValidation, renderer.KindPublish, "submit", "publish account not configured", nil)
	}
	payload := submitRequest{
		ProjectID: req.ProjectID,
		AccountID: c.accountID,
		VideoURL:  req.VideoPath,
		Caption:   req.Caption,
	}
	body, status, err := c.do(ctx, http.MethodPost, "/v1/posts", payload)
	if err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", "request failed", err)
	}
	if status >= http.StatusMultipleChoices {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
	}
	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", "decode response", err)
	}
	if decoded.Error != "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", decoded.Error, nil)
	}
	if decoded.JobID == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "submit", "empty job id", nil)
	}
	return decoded.JobID, nil
}

func (c *Client) Poll(ctx context.Context, jobID string) (renderer.Outcome, error) {
	var empty renderer.Outcome
	body, status, err := c.do(ctx, http.MethodGet, "/v1/posts/"+url.PathEscape(jobID), nil)
	if err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "poll", "request failed", err)
	}
	if status == http.StatusNotFound {
		return empty, renderer.Wrap(renderer.ErrNotFound, renderer.KindPublish, "poll", "unknown job "+jobID, nil)
	}
	if status >= http.StatusMultipleChoices {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "poll", fmt.Sprintf("http %d", status), nil)
	}
	var decoded jobResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "poll", "decode response", err)
	}
	switch decoded.Status {
	case "queued", "running", "publishing":
		return renderer.Outcome{State: renderer.StateRunning}, nil
	case "succeeded", "published":
		if decoded.PostID == "" {
			return renderer.Outcome{State: renderer.StateFailed, Reason: "service reported success without a post id"}, nil
		}
		return renderer.Outcome{
			State:    renderer.StateSucceeded,
			Artifact: renderer.Artifact{PostID: decoded.PostID, PublishURL: decoded.Permalink},
		}, nil
	case "failed", "canceled":
		reason := decoded.Error
		if reason == "" {
			reason = "publish failed"
		}
		return renderer.Outcome{State: renderer.StateFailed, Reason: reason}, nil
	default:
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "poll", "unknown status "+decoded.Status, nil)
	}
}

func (c *Client) Cancel(ctx context.Context, jobID string) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/v1/posts/"+url.PathEscape(jobID), nil)
	if err != nil {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "cancel", "request failed", err)
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status >= http.StatusMultipleChoices {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindPublish, "cancel", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, 0, fmt.Errorf("build url: %w", err)
	}
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.accessToken != "" {
		req.Header.Set("X-Access-Token", c.accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
