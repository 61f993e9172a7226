// Package video talks to the remote video synthesis service. Jobs are
// submitted with the project media and marketing script and polled until the
// service reports a terminal state.
package video

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

// Client wraps the video renderer HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the video client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// New constructs a video renderer client from configuration.
func New(cfg config.Renderer, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Kind identifies this client to the dispatcher registry.
func (c *Client) Kind() renderer.Kind {
	return renderer.KindVideo
}

type submitRequest struct {
	ProjectID       string `json:"project_id"`
	Script          string `json:"script"`
	ProductImage    string `json:"product_image"`
	PersonMedia     string `json:"person_media"`
	PersonMediaType string `json:"person_media_type,omitempty"`
	Style           string `json:"style,omitempty"`
	Layout          string `json:"layout,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

type jobResponse struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Submit starts a video synthesis job and returns the service-assigned job id.
func (c *Client) Submit(ctx context.Context, req renderer.Request) (string, error) {
	if c.baseURL == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", "base url not configured", nil)
	}
	payload := submitRequest{
		ProjectID:       req.ProjectID,
		Script:          req.Script,
		ProductImage:    req.ProductImagePath,
		PersonMedia:     req.PersonMediaPath,
		PersonMediaType: req.PersonMediaType,
		Style:           req.VideoStyle,
		Layout:          req.VideoLayout,
	}
	body, status, err := c.do(ctx, http.MethodPost, "/v1/jobs", payload)
	if err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", "request failed", err)
	}
	if status >= http.StatusMultipleChoices {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
	}
	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", "decode response", err)
	}
	if decoded.Error != "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", decoded.Error, nil)
	}
	if decoded.JobID == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "submit", "empty job id", nil)
	}
	return decoded.JobID, nil
}

// Poll reports the current state of a submitted job. A job the service no
// longer knows yields ErrNotFound.
func (c *Client) Poll(ctx context.Context, jobID string) (renderer.Outcome, error) {
	var empty renderer.Outcome
	body, status, err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "poll", "request failed", err)
	}
	if status == http.StatusNotFound {
		return empty, renderer.Wrap(renderer.ErrNotFound, renderer.KindVideo, "poll", "unknown job "+jobID, nil)
	}
	if status >= http.StatusMultipleChoices {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "poll", fmt.Sprintf("http %d", status), nil)
	}
	var decoded jobResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "poll", "decode response", err)
	}
	switch decoded.Status {
	case "queued", "running", "processing":
		return renderer.Outcome{State: renderer.StateRunning}, nil
	case "succeeded", "completed":
		if decoded.VideoURL == "" {
			return renderer.Outcome{State: renderer.StateFailed, Reason: "service reported success without a video"}, nil
		}
		return renderer.Outcome{
			State:    renderer.StateSucceeded,
			Artifact: renderer.Artifact{VideoPath: decoded.VideoURL},
		}, nil
	case "failed", "canceled":
		reason := decoded.Error
		if reason == "" {
			reason = "video generation failed"
		}
		return renderer.Outcome{State: renderer.StateFailed, Reason: reason}, nil
	default:
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "poll", "unknown status "+decoded.Status, nil)
	}
}

// Cancel asks the service to abandon a job. Unknown jobs are not an error.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/v1/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "cancel", "request failed", err)
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status >= http.StatusMultipleChoices {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "cancel", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
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
