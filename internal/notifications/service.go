// Package notifications delivers job outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and gracefully degrades to a no-op when notifications
// are disabled.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicecast/internal/config"
)

const userAgent = "Voicecast/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobSucceeded(ctx context.Context, episodeTitle string, jobID int64) error
	NotifyJobFailed(ctx context.Context, episodeTitle string, jobID int64, reason string) error
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

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func (n *ntfyService) NotifyJobSucceeded(ctx context.Context, episodeTitle string, jobID int64) error {
	episodeTitle = strings.TrimSpace(episodeTitle)
	data := payload{
		title:    "Voicecast - Episode Ready",
		message:  fmt.Sprintf("Audio generated for %q (job %d)", episodeTitle, jobID),
		tags:     []string{"voicecast", "job", "succeeded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, episodeTitle string, jobID int64, reason string) error {
	episodeTitle = strings.TrimSpace(episodeTitle)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Voicecast - Generation Failed",
		message:  fmt.Sprintf("Job %d for %q failed: %s", jobID, episodeTitle, reason),
		tags:     []string{"voicecast", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Voicecast - Test",
		message:  "Notification system test",
		tags:     []string{"voicecast", "test"},
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

type noopService struct{}

func (noopService) NotifyJobSucceeded(context.Context, string, int64) error      { return nil }
func (noopService) NotifyJobFailed(context.Context, string, int64, string) error { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
