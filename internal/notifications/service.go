package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"galleryvault/internal/config"
)

const userAgent = "galleryvault"

// Event names a notification kind.
type Event string

const (
	EventCrawlCompleted    Event = "crawl_completed"
	EventTransfersFinished Event = "transfers_finished"
	EventVerifyProblems    Event = "verify_problems"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries the values an event message is rendered from.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy publisher for cfg, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render builds the message for event. Events with nothing worth reporting
// return false.
func render(event Event, p Payload) (message, bool) {
	switch event {
	case EventCrawlCompleted:
		downloaded, failed, wanted := p.count("downloaded"), p.count("failed"), p.count("wanted")
		if downloaded == 0 && failed == 0 && wanted == 0 {
			return message{}, false
		}
		body := fmt.Sprintf("Crawl from %s: %d downloaded, %d wanted, %d failed", p.text("source", "unknown"), downloaded, wanted, failed)
		msg := message{title: "galleryvault - Crawl", body: body, tags: []string{"galleryvault", "crawl"}}
		if wanted > 0 {
			msg.tags = append(msg.tags, "wanted")
		}
		return msg, true
	case EventTransfersFinished:
		completed, failed := p.count("completed"), p.count("failed")
		if completed == 0 && failed == 0 {
			return message{}, false
		}
		msg := message{
			title: "galleryvault - Transfers",
			body:  fmt.Sprintf("Transfers finished: %d completed, %d failed", completed, failed),
			tags:  []string{"galleryvault", "transfer"},
		}
		if failed > 0 {
			msg.priority = "high"
		}
		return msg, true
	case EventVerifyProblems:
		problems := p.count("problems")
		if problems == 0 {
			return message{}, false
		}
		return message{
			title:    "galleryvault - Verification",
			body:     fmt.Sprintf("%d of %d archives failed verification", problems, p.count("checked")),
			tags:     []string{"galleryvault", "verify", "alert"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("Error")
		if label := p.text("context", ""); label != "" {
			b.WriteString(" in ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		b.WriteString(p.text("error", "unknown"))
		return message{
			title:    "galleryvault - Error",
			body:     b.String(),
			tags:     []string{"galleryvault", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "galleryvault - Test",
			body:     "Notification test",
			tags:     []string{"galleryvault", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	req.Header.Set("Tags", strings.Join(msg.tags, ","))
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) text(key, fallback string) string {
	var s string
	switch v := p[key].(type) {
	case string:
		s = v
	case error:
		s = v.Error()
	case fmt.Stringer:
		s = v.String()
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
