package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceover/internal/config"
)

const userAgent = "voiceover/0.1.0"

// Event names a notification-worthy occurrence.
type Event string

const (
	EventBatchStarted   Event = "batch_started"
	EventBatchCompleted Event = "batch_completed"
	EventClipFailed     Event = "clip_failed"
	EventTest           Event = "test"
)

// Payload carries event fields. Known keys: count, processed, failed,
// duration (time.Duration), clipID, stage, error.
type Payload map[string]any

// Service publishes events to the configured notification backend.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
		enabled: map[Event]bool{
			EventBatchStarted:   cfg.Notifications.BatchStarted,
			EventBatchCompleted: cfg.Notifications.BatchCompleted,
			EventClipFailed:     cfg.Notifications.ClipFailed,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBatchStarted:
		return message{
			title: "Voiceover - Batch Started",
			body:  fmt.Sprintf("Removing commentary from %d clips", payload.count("count")),
			tags:  []string{"voiceover", "batch", "started"},
		}, true
	case EventBatchCompleted:
		processed := payload.count("processed")
		failed := payload.count("failed")
		duration := payload.duration("duration").Round(time.Second)
		if duration < 0 {
			duration = 0
		}
		if failed == 0 {
			return message{
				title: "Voiceover - Batch Complete",
				body:  fmt.Sprintf("Batch complete: %d clips processed in %s", processed, duration),
				tags:  []string{"voiceover", "batch", "completed"},
			}, true
		}
		return message{
			title: "Voiceover - Batch Complete (with errors)",
			body:  fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", processed, failed, duration),
			tags:  []string{"voiceover", "batch", "completed"},
		}, true
	case EventClipFailed:
		var b strings.Builder
		b.WriteString("Clip ")
		b.WriteString(payload.text("clipID", "unknown"))
		if stage := payload.text("stage", ""); stage != "" {
			b.WriteString(" failed during ")
			b.WriteString(stage)
		} else {
			b.WriteString(" failed")
		}
		b.WriteString(": ")
		b.WriteString(payload.text("error", "unknown"))
		return message{
			title:    "Voiceover - Clip Failed",
			body:     b.String(),
			tags:     []string{"voiceover", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Voiceover - Test",
			body:     "Notification system test",
			tags:     []string{"voiceover", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (p Payload) text(key, fallback string) string {
	switch v := p[key].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	case error:
		if v != nil {
			return strings.TrimSpace(v.Error())
		}
	case fmt.Stringer:
		return v.String()
	}
	return fallback
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func (p Payload) duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a service that drops every event.
func NewNoop() Service { return noopService{} }
