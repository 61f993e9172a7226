package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adforge/internal/config"
)

const userAgent = "Adforge/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyProjectCreated(ctx context.Context, productName string) error
	NotifyStageStarted(ctx context.Context, productName, stage string) error
	NotifyStageCompleted(ctx context.Context, productName, stage string) error
	NotifyPublished(ctx context.Context, productName, permalink string) error
	NotifyPipelineFailed(ctx context.Context, productName, stage, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyProjectCreated(ctx context.Context, productName string) error {
	data := payload{
		title:   "Adforge - Project Created",
		message: fmt.Sprintf("New project: %s", displayName(productName)),
		tags:    []string{"adforge", "project", "created"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageStarted(ctx context.Context, productName, stage string) error {
	data := payload{
		title:   "Adforge - Stage Started",
		message: fmt.Sprintf("Started %s for %s", stageLabel(stage), displayName(productName)),
		tags:    []string{"adforge", "stage", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, productName, stage string) error {
	data := payload{
		title:   "Adforge - Stage Complete",
		message: fmt.Sprintf("Finished %s for %s", stageLabel(stage), displayName(productName)),
		tags:    []string{"adforge", "stage", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, productName, permalink string) error {
	message := fmt.Sprintf("Published: %s", displayName(productName))
	if permalink = strings.TrimSpace(permalink); permalink != "" {
		message = fmt.Sprintf("%s\n%s", message, permalink)
	}
	data := payload{
		title:    "Adforge - Published",
		message:  message,
		tags:     []string{"adforge", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPipelineFailed(ctx context.Context, productName, stage, reason string) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Failed %s for %s", stageLabel(stage), displayName(productName))
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(": ")
		builder.WriteString(reason)
	}
	data := payload{
		title:    "Adforge - Failed",
		message:  builder.String(),
		tags:     []string{"adforge", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Adforge - Test",
		message:  "Notification system test",
		tags:     []string{"adforge", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(productName string) string {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return "untitled product"
	}
	return productName
}

func stageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return "stage"
	}
	return strings.ReplaceAll(stage, "_", " ")
}

type noopService struct{}

func (noopService) NotifyProjectCreated(context.Context, string) error               { return nil }
func (noopService) NotifyStageStarted(context.Context, string, string) error         { return nil }
func (noopService) NotifyStageCompleted(context.Context, string, string) error       { return nil }
func (noopService) NotifyPublished(context.Context, string, string) error            { return nil }
func (noopService) NotifyPipelineFailed(context.Context, string, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
