// Package website talks to the landing page generation service.
package website

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

// Client wraps the website renderer HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
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

func (c *Client) Kind() renderer.Kind {
	return renderer.KindWebsite
}

type submitRequest struct {
	ProjectID          string `json:"project_id"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description,omitempty"`
	ProductCategory    string `json:"product_category,omitempty"`
	ProductPrice       string `json:"product_price,omitempty"`
	ProductImage       string `json:"product_image"`
	Script             string `json:"script,omitempty"`
	VideoURL           string `json:"video_url"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

type jobResponse struct {
	Status  string `json:"status"`
	SiteURL string `json:"site_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Submit starts a website build. The finished video is part of the page, so
// requests without one are rejected locally instead of burning a job.
func (c *Client) Submit(ctx context.Context, req renderer.Request) (string, error) {
	if c.baseURL == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", "base url not configured", nil)
	}
	if req.VideoPath == "" {
		return "", renderer.Wrap(renderer.ErrValidation, renderer.KindWebsite, "submit", "video artifact required", nil)
	}
	payload := submitRequest{
		ProjectID:          req.ProjectID,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		ProductCategory:    req.ProductCategory,
		ProductPrice:       req.ProductPrice,
		ProductImage:       req.ProductImagePath,
		Script:             req.Script,
		VideoURL:           req.VideoPath,
	}
	body, status, err := c.do(ctx, http.MethodPost, "/v1/sites", payload)
	if err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", "request failed", err)
	}
	if status >= http.StatusMultipleChoices {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
	}
	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", "decode response", err)
	}
	if decoded.Error != "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", decoded.Error, nil)
	}
	if decoded.JobID == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "submit", "empty job id", nil)
	}
	return decoded.JobID, nil
}

func (c *Client) Poll(ctx context.Context, jobID string) (renderer.Outcome, error) {
	var empty renderer.Outcome
	body, status, err := c.do(ctx, http.MethodGet, "/v1/sites/"+url.PathEscape(jobID), nil)
	if err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "poll", "request failed", err)
	}
	if status == http.StatusNotFound {
		return empty, renderer.Wrap(renderer.ErrNotFound, renderer.KindWebsite, "poll", "unknown job "+jobID, nil)
	}
	if status >= http.StatusMultipleChoices {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "poll", fmt.Sprintf("http %d", status), nil)
	}
	var decoded jobResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "poll", "decode response", err)
	}
	switch decoded.Status {
	case "queued", "running", "building":
		return renderer.Outcome{State: renderer.StateRunning}, nil
	case "succeeded", "completed":
		if decoded.SiteURL == "" {
			return renderer.Outcome{State: renderer.StateFailed, Reason: "service reported success without a site"}, nil
		}
		return renderer.Outcome{
			State:    renderer.StateSucceeded,
			Artifact: renderer.Artifact{SitePath: decoded.SiteURL},
		}, nil
	case "failed", "canceled":
		reason := decoded.Error
		if reason == "" {
			reason = "website generation failed"
		}
		return renderer.Outcome{State: renderer.StateFailed, Reason: reason}, nil
	default:
		return empty, renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "poll", "unknown status "+decoded.Status, nil)
	}
}

func (c *Client) Cancel(ctx context.Context, jobID string) error {
	body, status, err := c.do(ctx, http.MethodDelete, "/v1/sites/"+url.PathEscape(jobID), nil)
	if err != nil {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "cancel", "request failed", err)
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status >= http.StatusMultipleChoices {
		return renderer.Wrap(renderer.ErrExternalService, renderer.KindWebsite, "cancel", fmt.Sprintf("http %d: %s", status, strings.TrimSpace(string(body))), nil)
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
