package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"summify/internal/config"
)

const userAgent = "Summify-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventQueueDrained Event = "queue_drained"
	EventTest         Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes events.
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
		onFailure:  cfg.Notifications.OnFailure,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
	onFailure  bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := n.build(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) build(event Event, data Payload) (payload, bool) {
	switch event {
	case EventJobCompleted:
		if !n.onComplete {
			return payload{}, false
		}
		name := stringValue(data, "file")
		message := fmt.Sprintf("✅ 处理完成: %s", name)
		if steps := stringValue(data, "steps"); steps != "" {
			message += fmt.Sprintf(" (steps %s)", steps)
		}
		if d, ok := data["duration"].(time.Duration); ok && d > 0 {
			message += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return payload{
			title:   "Summify - Complete",
			message: message,
			tags:    []string{"summify", "job", "completed"},
		}, true
	case EventJobFailed:
		if !n.onFailure {
			return payload{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ 处理失败")
		if name := stringValue(data, "file"); name != "" {
			builder.WriteString(": ")
			builder.WriteString(name)
		}
		if code := stringValue(data, "code"); code != "" {
			builder.WriteString(" [")
			builder.WriteString(code)
			builder.WriteString("]")
		}
		if errText := stringValue(data, "error"); errText != "" {
			builder.WriteString("\n")
			builder.WriteString(errText)
		}
		return payload{
			title:    "Summify - Failed",
			message:  builder.String(),
			tags:     []string{"summify", "job", "failed"},
			priority: "high",
		}, true
	case EventQueueDrained:
		if !n.onComplete {
			return payload{}, false
		}
		processed, _ := data["processed"].(int)
		failed, _ := data["failed"].(int)
		if processed+failed < 2 {
			return payload{}, false
		}
		return payload{
			title:   "Summify - Queue Empty",
			message: fmt.Sprintf("Queue drained: %d succeeded, %d failed", processed, failed),
			tags:    []string{"summify", "queue", "completed"},
		}, true
	case EventTest:
		return payload{
			title:    "Summify - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"summify", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
