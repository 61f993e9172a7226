package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adforge/internal/config"
	"adforge/internal/project"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultHTTPTimeout = 30 * time.Second
)

// systemPrompt steers the model toward spoken ad copy rather than prose.
const systemPrompt = `You write voiceover scripts for short-form product ads.
Write a script of at most 60 words for the product described by the user.
The script is read aloud over a 20 to 30 second video. Use short punchy
sentences, mention the product name at least twice, and end with a call to
action. Respond with the script text only, no stage directions or markup.`

// Writer calls an OpenAI-compatible chat completion endpoint.
type Writer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the writer.
type Option func(*Writer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Writer) {
		if client != nil {
			w.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(w *Writer) {
		base = strings.TrimSpace(base)
		if base != "" {
			w.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewWriter constructs an LLM-backed script writer.
func NewWriter(cfg config.Script, opts ...Option) *Writer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	writer := &Writer{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		httpClient: &http.Client{Timeout: timeout},
	}
	if writer.model == "" {
		writer.model = defaultModel
	}
	for _, opt := range opts {
		opt(writer)
	}
	if writer.httpClient == nil {
		writer.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return writer
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate asks the model for a script built from the product metadata.
func (w *Writer) Generate(ctx context.Context, in project.Inputs) (string, error) {
	if w.apiKey == "" {
		return "", errors.New("script generate: api key required")
	}
	if w.baseURL == "" {
		return "", errors.New("script generate: base url required")
	}

	requestBody := chatCompletionRequest{
		Model: w.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: describeProduct(in)},
		},
		Temperature: 0.7,
	}
	endpoint, err := url.JoinPath(w.baseURL, "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("script generate: build url: %w", err)
	}
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("script generate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("script generate: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("script generate: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("script generate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("script generate: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("script generate: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("script generate: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("script generate: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("script generate: empty content")
	}
	return content, nil
}

func describeProduct(in project.Inputs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", strings.TrimSpace(in.ProductName))
	if desc := strings.TrimSpace(in.ProductDescription); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}
	if category := strings.TrimSpace(in.ProductCategory); category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	if price := strings.TrimSpace(in.ProductPrice); price != "" {
		fmt.Fprintf(&b, "Price: %s\n", price)
	}
	return b.String()
}
